package extraction

import (
	"context"
	"sync"
	"time"

	"github.com/planforge/planforge/internal/log"
)

// ResultFunc receives a finished extraction. The dialogue engine uses it to
// fold the enrichment into the session; it must load a fresh snapshot rather
// than reuse whatever the session looked like at dispatch time, because the
// conversation keeps moving while extraction runs.
type ResultFunc func(ctx context.Context, participantID, attachmentRef, enrichment string, extractErr error)

// Dispatcher runs extractions in the background, one goroutine per dispatch.
type Dispatcher struct {
	extractor Extractor
	timeout   time.Duration
	logger    *log.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a dispatcher around an extractor
func NewDispatcher(extractor Extractor, timeout time.Duration, logger *log.Logger) *Dispatcher {
	if timeout == 0 {
		timeout = 2 * time.Minute
	}
	return &Dispatcher{
		extractor: extractor,
		timeout:   timeout,
		logger:    logger,
	}
}

// Dispatch starts an extraction for the given attachment and returns
// immediately. The result, success or failure, is delivered to fn on a
// background goroutine. The dispatch context is detached from the caller's:
// a finished conversational turn must not cancel an in-flight extraction.
func (d *Dispatcher) Dispatch(participantID, attachmentRef string, fn ResultFunc) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		enrichment, err := d.extractor.Extract(ctx, attachmentRef)
		if err != nil {
			d.logger.WithError(err).Warn("attachment extraction failed",
				"participant_id", participantID,
				"attachment_ref", attachmentRef)
		}

		fn(ctx, participantID, attachmentRef, enrichment, err)
	}()
}

// Wait blocks until all dispatched extractions have delivered their results
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
