// Package recorder persists usage records off the request path.
//
// The gateway's response must never wait on, or fail because of, usage
// bookkeeping. Records are pushed onto a buffered queue and a single worker
// drains it into the database; insert failures are logged and dropped,
// which degrades future rate-limit counts rather than the current response.
package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"apigate/internal/db"
	"apigate/internal/logger"
	"apigate/internal/model"
)

const (
	queueSize = 256

	// insertTimeout bounds each worker insert. The request that produced the
	// record is long gone, so the worker carries its own deadline.
	insertTimeout = 5 * time.Second
)

type Recorder struct {
	db     db.Service
	logger *slog.Logger
	queue  chan model.UsageRecord
	wg     sync.WaitGroup
}

func New(dbService db.Service, log *slog.Logger) *Recorder {
	r := &Recorder{
		db:     dbService,
		logger: logger.Component(log, "recorder"),
		queue:  make(chan model.UsageRecord, queueSize),
	}
	r.wg.Add(1)
	go r.worker()
	return r
}

// Record enqueues one usage record without blocking. If the queue is full
// the record is dropped and logged; the caller-facing response has already
// been decided at this point.
func (r *Recorder) Record(rec model.UsageRecord) {
	select {
	case r.queue <- rec:
	default:
		r.logger.Error("usage queue full, dropping record",
			"key_id", rec.APIKeyID, "endpoint", rec.Endpoint)
	}
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for rec := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		if err := r.db.CreateUsageRecord(ctx, &rec); err != nil {
			r.logger.Error("failed to persist usage record",
				"key_id", rec.APIKeyID, "endpoint", rec.Endpoint, "error", err)
		}
		cancel()
	}
}

// Close stops accepting records, drains the queue and waits for the worker.
func (r *Recorder) Close() {
	close(r.queue)
	r.wg.Wait()
}
