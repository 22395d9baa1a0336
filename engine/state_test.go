package engine

import (
	"fmt"
	"math"
	"testing"
)

func TestComputeRatio(t *testing.T) {
	cases := []struct {
		name       string
		own        float64
		target     float64
		multiplier float64
		manual     float64
		want       float64
	}{
		{"proportional", 1000, 10000, 1.0, 0, 0.1},
		{"capped at one", 20000, 10000, 1.0, 0, 1.0},
		{"multiplier applies", 1000, 10000, 0.5, 0, 0.05},
		{"manual overrides", 1000, 10000, 1.0, 0.25, 0.25},
		{"manual capped", 1000, 10000, 1.0, 3.0, 1.0},
		{"target value invalid", 1000, 0, 1.0, 0, FallbackRatio},
		{"own value invalid", 0, 10000, 1.0, 0, FallbackRatio},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeRatio(tc.own, tc.target, tc.multiplier, tc.manual)
			if math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("expected %f, got %f", tc.want, got)
			}
		})
	}
}

func TestComputeRatioNeverExceedsMultiplier(t *testing.T) {
	for _, own := range []float64{1, 100, 10000, 1e9} {
		got := ComputeRatio(own, 500, 0.7, 0)
		if got > 0.7+1e-12 {
			t.Fatalf("ratio %f exceeds multiplier for own=%f", got, own)
		}
	}
}

func TestCopyStateFillDedup(t *testing.T) {
	s := NewCopyState()
	if s.SeenFill("0xabc_100") {
		t.Fatalf("first occurrence must not be seen")
	}
	if !s.SeenFill("0xabc_100") {
		t.Fatalf("second occurrence must be deduplicated")
	}
	// 同一哈希不同时间戳是不同成交
	if s.SeenFill("0xabc_200") {
		t.Fatalf("different timestamp must be a new fill")
	}
}

func TestCopyStateFillDedupBounded(t *testing.T) {
	s := NewCopyState()
	for i := 0; i < maxKnownFills+10; i++ {
		s.SeenFill(fmt.Sprintf("0x%d_1", i))
	}
	// 容量触顶后重置，不应无限增长
	s.mu.Lock()
	n := len(s.knownFills)
	s.mu.Unlock()
	if n > maxKnownFills {
		t.Fatalf("dedup set grew past cap: %d", n)
	}
}

func TestCopyStateFailureCounter(t *testing.T) {
	s := NewCopyState()
	for i := 1; i <= 3; i++ {
		if got := s.RecordFailure(); got != i {
			t.Fatalf("expected %d, got %d", i, got)
		}
	}
	s.ResetFailures()
	if s.Failures() != 0 {
		t.Fatalf("expected reset to zero")
	}
	if got := s.RecordFailure(); got != 1 {
		t.Fatalf("counter must restart at 1, got %d", got)
	}
}

func TestCopyStatePrevBaseline(t *testing.T) {
	s := NewCopyState()
	if _, ok := s.Prev(); ok {
		t.Fatalf("fresh state must have no baseline")
	}
	s.SetPrev(nil)
	if _, ok := s.Prev(); !ok {
		t.Fatalf("baseline flag must be set even for empty snapshot")
	}
}
