package ddos

import (
	"fmt"
	"testing"
	"time"
)

func fixedThresholds(limit int, window time.Duration) func() Thresholds {
	return func() Thresholds {
		return Thresholds{BurstLimit: limit, BurstWindow: window}
	}
}

func TestDetectorFlagsBurst(t *testing.T) {
	detector := NewDetector(fixedThresholds(50, 10*time.Second), 0)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 50; i++ {
		if detector.Inspect("ip:203.0.113.7", "/v0/data", now) {
			t.Fatalf("request %d should not be flagged", i)
		}
	}
	if !detector.Inspect("ip:203.0.113.7", "/v0/data", now) {
		t.Fatalf("request beyond burst limit should be flagged")
	}
}

func TestDetectorWindowRollover(t *testing.T) {
	detector := NewDetector(fixedThresholds(3, 10*time.Second), 0)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		detector.Inspect("ip:a", "/v0/data", now)
	}
	if !detector.Inspect("ip:a", "/v0/data", now) {
		t.Fatalf("expected flag inside window")
	}
	if detector.Inspect("ip:a", "/v0/data", now.Add(10*time.Second)) {
		t.Fatalf("velocity counter should reset after the window")
	}
}

func TestDetectorScanSignatures(t *testing.T) {
	detector := NewDetector(fixedThresholds(1000, time.Minute), 0)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, path := range []string{"/.env", "/wp-admin/setup.php", "/index.PHP", "/cgi-bin/test"} {
		if !detector.Inspect("ip:a", path, now) {
			t.Fatalf("expected scan path %q to be flagged", path)
		}
	}
	if detector.Inspect("ip:a", "/v0/environment", now) {
		t.Fatalf("legitimate path should not match scan signatures")
	}
}

func TestDetectorBoundedTracking(t *testing.T) {
	detector := NewDetector(fixedThresholds(100, time.Minute), 10)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 100; i++ {
		detector.Inspect(fmt.Sprintf("ip:%d", i), "/v0/data", now)
	}
	detector.mu.Lock()
	tracked := len(detector.entries)
	detector.mu.Unlock()
	if tracked > 10 {
		t.Fatalf("expected at most 10 tracked identities, got %d", tracked)
	}
}
