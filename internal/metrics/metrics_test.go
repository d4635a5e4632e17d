package metrics

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsExist(t *testing.T) {
	tests := []struct {
		name   string
		metric interface{}
	}{
		{"HTTPRequestsTotal", HTTPRequestsTotal},
		{"HTTPRequestDuration", HTTPRequestDuration},
		{"HTTPRequestsInFlight", HTTPRequestsInFlight},
		{"UploadsTotal", UploadsTotal},
		{"UploadBytesTotal", UploadBytesTotal},
		{"UploadSessionsActive", UploadSessionsActive},
		{"TranscodeJobsTotal", TranscodeJobsTotal},
		{"TranscodeJobsInFlight", TranscodeJobsInFlight},
		{"TranscodeQueueDepth", TranscodeQueueDepth},
		{"TranscodeDuration", TranscodeDuration},
		{"JobStoreEntries", JobStoreEntries},
		{"DBQueryTotal", DBQueryTotal},
		{"DBQueryDuration", DBQueryDuration},
		{"FilesystemStaleErrors", FilesystemStaleErrors},
		{"FilesystemRetries", FilesystemRetries},
		{"GoMemLimitBytes", GoMemLimitBytes},
		{"AppInfo", AppInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.metric == nil {
				t.Errorf("%s metric is nil", tt.name)
			}
		})
	}
}

func TestInitializeMetrics(t *testing.T) {
	InitializeMetrics()

	if got := testutil.CollectAndCount(UploadsTotal); got < 4*5 {
		t.Errorf("UploadsTotal series = %d, want at least 20", got)
	}
	if got := testutil.CollectAndCount(TranscodeJobsTotal); got < 4 {
		t.Errorf("TranscodeJobsTotal series = %d, want at least 4", got)
	}
	if got := testutil.CollectAndCount(FilesystemRetries); got < 4 {
		t.Errorf("FilesystemRetries series = %d, want at least 4", got)
	}
}

func TestCollectorUpdatesGauges(t *testing.T) {
	var calls atomic.Int32
	provider := StatsFunc(func() Stats {
		calls.Add(1)
		return Stats{JobStoreEntries: 7, ActiveSessions: 3, QueuedJobs: 2}
	})

	c := NewCollector(provider, 10*time.Millisecond)
	c.Start()

	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("collector did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Stop()

	if got := testutil.ToFloat64(JobStoreEntries); got != 7 {
		t.Errorf("JobStoreEntries = %v, want 7", got)
	}
	if got := testutil.ToFloat64(UploadSessionsActive); got != 3 {
		t.Errorf("UploadSessionsActive = %v, want 3", got)
	}
	if got := testutil.ToFloat64(TranscodeQueueDepth); got != 2 {
		t.Errorf("TranscodeQueueDepth = %v, want 2", got)
	}
}

func TestCollectorNilProvider(t *testing.T) {
	c := NewCollector(nil, time.Hour)
	c.Start()
	c.Stop()
}
