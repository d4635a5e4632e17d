package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/dustin/go-humanize"

	"file-uploader/internal/logging"
	"file-uploader/internal/metrics"
)

// DefaultMemoryRatio is the share of the container limit handed to the Go
// heap. The rest is left for FFmpeg and goroutine stacks.
const DefaultMemoryRatio = 0.75

const (
	sourceGOMEMLIMIT  = "GOMEMLIMIT"
	sourceMemoryLimit = "MEMORY_LIMIT"
	sourceNone        = "none"
)

// ConfigResult holds the result of memory configuration
type ConfigResult struct {
	// Configured indicates whether a runtime limit is in effect
	Configured bool

	// Source is "GOMEMLIMIT", "MEMORY_LIMIT", or "none"
	Source string

	// ContainerLimit is the container memory limit in bytes (0 if not set)
	ContainerLimit int64

	// GoMemLimit is the runtime soft limit in bytes (0 if not set)
	GoMemLimit int64

	// Ratio is the memory ratio used (0 if not applicable)
	Ratio float64
}

// ConfigureFromEnv applies the limit described by the process environment.
func ConfigureFromEnv() ConfigResult {
	return Configure(os.Getenv)
}

// Configure applies the limit described by getenv and reports what it did.
func Configure(getenv func(string) string) ConfigResult {
	result := configure(getenv)
	metrics.GoMemLimitBytes.Set(float64(result.GoMemLimit))
	return result
}

func configure(getenv func(string) string) ConfigResult {
	if raw := getenv("GOMEMLIMIT"); raw != "" {
		// The runtime already parsed it at startup.
		result := ConfigResult{Source: sourceGOMEMLIMIT}
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", raw)
		return result
	}

	raw := getenv("MEMORY_LIMIT")
	if raw == "" {
		logging.Debug("MEMORY_LIMIT not set, GOMEMLIMIT will not be configured automatically")
		return ConfigResult{Source: sourceNone}
	}

	parsed, err := humanize.ParseBytes(raw)
	if err != nil {
		logging.Warn("Failed to parse MEMORY_LIMIT %q: %v", raw, err)
		return ConfigResult{Source: sourceNone}
	}
	if parsed == 0 || parsed > math.MaxInt64 {
		logging.Warn("MEMORY_LIMIT %q out of range, GOMEMLIMIT not configured", raw)
		return ConfigResult{Source: sourceNone}
	}
	memLimit := int64(parsed)

	ratio := DefaultMemoryRatio
	if ratioStr := getenv("MEMORY_RATIO"); ratioStr != "" {
		parsedRatio, err := strconv.ParseFloat(ratioStr, 64)
		switch {
		case err != nil:
			logging.Warn("Failed to parse MEMORY_RATIO %q: %v, using default %.2f", ratioStr, err, DefaultMemoryRatio)
		case parsedRatio <= 0 || parsedRatio > 1:
			logging.Warn("MEMORY_RATIO %q out of range (0.0-1.0), using default %.2f", ratioStr, DefaultMemoryRatio)
		default:
			ratio = parsedRatio
		}
	}

	goMemLimit := int64(float64(memLimit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	logging.Info("Configured GOMEMLIMIT: %s (%.1f%% of %s container limit)",
		humanize.IBytes(uint64(goMemLimit)), ratio*100, humanize.IBytes(uint64(memLimit)))

	return ConfigResult{
		Configured:     true,
		Source:         sourceMemoryLimit,
		ContainerLimit: memLimit,
		GoMemLimit:     goMemLimit,
		Ratio:          ratio,
	}
}
