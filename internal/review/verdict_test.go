package review

import (
	"testing"

	"github.com/hochfrequenz/flowctl/internal/domain"
)

func TestExtractVerdict(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		want       domain.ReviewVerdict
		wantOK     bool
	}{
		{"ship", "looks good <verdict>SHIP</verdict>", domain.VerdictShip, true},
		{"needs work lowercase", "hmm <verdict>needs_work</verdict>", domain.VerdictNeedsWork, true},
		{"major rethink", "<verdict>MAJOR_RETHINK</verdict>", domain.VerdictMajorRethink, true},
		{"no tag", "I reviewed the diff and it looks fine.", "", false},
		{
			"last of two wins",
			"<verdict>NEEDS_WORK</verdict> actually wait <verdict>SHIP</verdict>",
			domain.VerdictShip,
			true,
		},
		{
			"tag split across lines",
			"<verdict>\nSHIP\n</verdict>",
			domain.VerdictShip,
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractVerdict(tt.transcript)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ExtractVerdict(%q) = (%q, %v), want (%q, %v)", tt.transcript, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestIsSandboxFailure(t *testing.T) {
	tests := []struct {
		name       string
		transcript string
		want       bool
	}{
		{"policy block", "request blocked by policy", true},
		{"seccomp", "terminated: seccomp violation", true},
		{"app container", "AppContainer denied access", true},
		{"normal review", "<verdict>SHIP</verdict>", false},
		{"mentions sandbox without denial language", "ran review in a sandbox environment", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSandboxFailure(tt.transcript); got != tt.want {
				t.Errorf("IsSandboxFailure(%q) = %v, want %v", tt.transcript, got, tt.want)
			}
		})
	}
}
