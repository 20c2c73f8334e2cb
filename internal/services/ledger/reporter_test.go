package ledger

import (
	"errors"
	"testing"

	"github.com/omnigate/omnigate/internal/models"

	"github.com/stretchr/testify/require"
)

func TestReporterDrainsAndStops(t *testing.T) {
	r := NewReporter(4)

	for range 8 {
		r.Report(WriteFailure{
			Params: models.RecordUsageParams{
				SessionID: "session-abc",
				ModelID:   "gpt-4",
			},
			RequestID: "req_test",
			Err:       errors.New("database is locked"),
		})
	}

	// Stop must flush without deadlocking even when the buffer overflowed.
	r.Stop()
	r.Stop()
}

func TestReporterAfterStop(t *testing.T) {
	r := NewReporter(1)
	r.Stop()

	require.NotPanics(t, func() {
		r.Report(WriteFailure{RequestID: "req_test", Err: errors.New("late failure")})
	})
}
