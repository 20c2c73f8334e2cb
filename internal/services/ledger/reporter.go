package ledger

import (
	"sync"
	"time"

	"github.com/omnigate/omnigate/internal/models"

	fiberlog "github.com/gofiber/fiber/v2/log"
)

// WriteFailure describes a usage record that could not be persisted. The
// request it belongs to has already been served, so the failure is surfaced
// to operators instead of the caller.
type WriteFailure struct {
	Params    models.RecordUsageParams
	RequestID string
	Err       error
	At        time.Time
}

// Reporter drains ledger write failures off the request path. Completions
// stay available when the ledger is down; the dropped accounting is logged
// loudly so operators can reconcile.
type Reporter struct {
	failures chan WriteFailure
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopped  chan struct{}
}

func NewReporter(bufferSize int) *Reporter {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	r := &Reporter{
		failures: make(chan WriteFailure, bufferSize),
		stopped:  make(chan struct{}),
	}

	r.wg.Add(1)
	go r.run()

	return r
}

// Report submits a write failure for operator logging. Never blocks the
// request path: if the buffer is full the failure is logged inline instead.
func (r *Reporter) Report(failure WriteFailure) {
	if failure.At.IsZero() {
		failure.At = time.Now().UTC()
	}

	select {
	case <-r.stopped:
		r.log(failure)
		return
	case r.failures <- failure:
	default:
		r.log(failure)
	}
}

func (r *Reporter) run() {
	defer r.wg.Done()

	for {
		select {
		case <-r.stopped:
			// Drain anything submitted before shutdown.
			for {
				select {
				case failure := <-r.failures:
					r.log(failure)
				default:
					return
				}
			}
		case failure := <-r.failures:
			r.log(failure)
		}
	}
}

func (r *Reporter) log(failure WriteFailure) {
	fiberlog.Errorf("[%s] usage ledger write failed for session=%s model=%s tokens=%d cost=%.6f: %v",
		failure.RequestID,
		failure.Params.SessionID,
		failure.Params.ModelID,
		failure.Params.PromptTokens+failure.Params.CompletionTokens,
		failure.Params.Cost,
		failure.Err,
	)
}

// Stop flushes pending failures and stops the reporter.
func (r *Reporter) Stop() {
	r.stopOnce.Do(func() {
		close(r.stopped)
		r.wg.Wait()
	})
}
