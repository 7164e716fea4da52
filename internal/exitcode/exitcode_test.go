package exitcode

import (
	"fmt"
	"testing"

	"github.com/planforge/planforge/internal/errors"
)

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, Success},
		{"validation error", errors.NewMissingMandatoryPhaseError("verification"), ValidationError},
		{"wrapped validation error", fmt.Errorf("finalize: %w", errors.NewDuplicateTaskIDError(4)), ValidationError},
		{"codec error", errors.NewUnknownLegendVersionError("v3"), CodecError},
		{"service error", errors.NewServiceTimeoutError("completion", nil), ServiceError},
		{"store error", errors.NewStoreConflictError("s-1"), StoreError},
		{"usage error", fmt.Errorf("unknown command %q", "frobnicate"), UsageError},
		{"plain error", fmt.Errorf("something odd"), GeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.want {
				t.Errorf("DetermineExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDescription(t *testing.T) {
	if Description(Success) != "Success" {
		t.Error("Description(Success) mismatch")
	}
	if Description(999) != "Unknown error" {
		t.Error("Description(999) should be unknown")
	}
}
