package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// ArchiveSink receives serialized audit batches for long-term storage.
type ArchiveSink interface {
	// Archive persists one batch under the given name.
	Archive(ctx context.Context, name string, payload []byte) error
}

// Exporter drains a chained Store into an ArchiveSink in rate-limited
// batches, so a burst of decisions cannot saturate the archive backend.
type Exporter struct {
	store     *Store
	sink      ArchiveSink
	limiter   *rate.Limiter
	batchSize int

	// mu serializes flushes; Run and manual Flush calls may overlap.
	mu       sync.Mutex
	exported int
}

// NewExporter builds an exporter. batchesPerMinute bounds archive
// writes; batchSize entries are packed per write.
func NewExporter(store *Store, sink ArchiveSink, batchesPerMinute float64, batchSize int) *Exporter {
	if batchesPerMinute <= 0 {
		batchesPerMinute = 6
	}
	if batchSize <= 0 {
		batchSize = 256
	}
	return &Exporter{
		store:     store,
		sink:      sink,
		limiter:   rate.NewLimiter(rate.Limit(batchesPerMinute/60.0), 1),
		batchSize: batchSize,
	}
}

// Flush exports all entries appended since the last flush. It blocks on
// the rate limiter between batches and stops on context cancellation.
func (e *Exporter) Flush(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	all := e.store.List(0)
	// List is newest-first; walk oldest-first from the export cursor.
	total := len(all)
	if e.exported >= total {
		return 0, nil
	}

	pending := make([]*Entry, 0, total-e.exported)
	for i := total - 1; i >= 0; i-- {
		if int(all[i].Sequence) > e.exported {
			pending = append(pending, all[i])
		}
	}

	written := 0
	for start := 0; start < len(pending); start += e.batchSize {
		end := start + e.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		if err := e.limiter.Wait(ctx); err != nil {
			return written, err
		}
		payload, err := json.Marshal(batch)
		if err != nil {
			return written, fmt.Errorf("marshal audit batch: %w", err)
		}
		name := fmt.Sprintf("audit/%s-%06d.json",
			time.Now().UTC().Format("20060102T150405Z"), batch[0].Sequence)
		if err := e.sink.Archive(ctx, name, payload); err != nil {
			return written, fmt.Errorf("archive batch: %w", err)
		}
		e.exported = int(batch[len(batch)-1].Sequence)
		written += len(batch)
	}
	return written, nil
}

// Run flushes on the given interval until the context ends.
func (e *Exporter) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := e.Flush(ctx); err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}
