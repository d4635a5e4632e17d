package memory

import (
	"math"
	"runtime/debug"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"file-uploader/internal/metrics"
)

func envMap(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

// keepLimit restores the runtime memory limit after the test.
func keepLimit(t *testing.T) {
	t.Helper()
	old := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(old) })
}

func TestConfigureNoEnvironment(t *testing.T) {
	keepLimit(t)

	result := Configure(envMap(nil))
	if result.Configured || result.Source != sourceNone {
		t.Errorf("result = %+v, want unconfigured with source none", result)
	}
	if got := testutil.ToFloat64(metrics.GoMemLimitBytes); got != 0 {
		t.Errorf("GoMemLimitBytes = %v, want 0", got)
	}
}

func TestConfigureFromMemoryLimit(t *testing.T) {
	tests := []struct {
		name      string
		limit     string
		ratio     string
		wantLimit int64
		wantRatio float64
	}{
		{"plain bytes default ratio", "1073741824", "", 805306368, 0.75},
		{"kubernetes unit", "512Mi", "", 402653184, 0.75},
		{"custom ratio", "1GiB", "0.5", 536870912, 0.5},
		{"ratio out of range", "1GiB", "1.5", 805306368, 0.75},
		{"ratio not a number", "1GiB", "lots", 805306368, 0.75},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keepLimit(t)

			result := Configure(envMap(map[string]string{
				"MEMORY_LIMIT": tt.limit,
				"MEMORY_RATIO": tt.ratio,
			}))

			if !result.Configured || result.Source != sourceMemoryLimit {
				t.Fatalf("result = %+v", result)
			}
			if result.GoMemLimit != tt.wantLimit {
				t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, tt.wantLimit)
			}
			if result.Ratio != tt.wantRatio {
				t.Errorf("Ratio = %v, want %v", result.Ratio, tt.wantRatio)
			}
			if got := debug.SetMemoryLimit(-1); got != tt.wantLimit {
				t.Errorf("runtime limit = %d, want %d", got, tt.wantLimit)
			}
			if got := testutil.ToFloat64(metrics.GoMemLimitBytes); got != float64(tt.wantLimit) {
				t.Errorf("GoMemLimitBytes = %v, want %d", got, tt.wantLimit)
			}
		})
	}
}

func TestConfigureInvalidMemoryLimit(t *testing.T) {
	keepLimit(t)
	before := debug.SetMemoryLimit(-1)

	for _, raw := range []string{"lots", "0", "-5"} {
		result := Configure(envMap(map[string]string{"MEMORY_LIMIT": raw}))
		if result.Configured {
			t.Errorf("MEMORY_LIMIT=%q configured %+v", raw, result)
		}
	}
	if got := debug.SetMemoryLimit(-1); got != before {
		t.Errorf("runtime limit changed to %d", got)
	}
}

func TestConfigureGOMEMLIMITTakesPrecedence(t *testing.T) {
	keepLimit(t)
	// GOMEMLIMIT is read by the runtime at startup; simulate that.
	debug.SetMemoryLimit(300 << 20)

	result := Configure(envMap(map[string]string{
		"GOMEMLIMIT":   "300MiB",
		"MEMORY_LIMIT": "1GiB",
	}))

	if result.Source != sourceGOMEMLIMIT || !result.Configured {
		t.Fatalf("result = %+v", result)
	}
	if result.GoMemLimit != 300<<20 {
		t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, 300<<20)
	}
	if result.ContainerLimit != 0 {
		t.Errorf("ContainerLimit = %d, want 0", result.ContainerLimit)
	}
	if got := debug.SetMemoryLimit(-1); got == math.MaxInt64 {
		t.Error("limit was cleared")
	}
}
