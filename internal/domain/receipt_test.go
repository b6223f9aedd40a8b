package domain

import "testing"

func TestReviewReceipt_GateStatusFor(t *testing.T) {
	tests := []struct {
		verdict ReviewVerdict
		want    ReviewGateStatus
	}{
		{VerdictShip, GateShip},
		{VerdictNeedsWork, GateNeedsWork},
		{VerdictMajorRethink, GateNeedsWork},
	}
	for _, tt := range tests {
		r := ReviewReceipt{Verdict: tt.verdict}
		if got := r.GateStatusFor(); got != tt.want {
			t.Errorf("GateStatusFor() with verdict %q = %q, want %q", tt.verdict, got, tt.want)
		}
	}
}
