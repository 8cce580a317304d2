package archive

import (
	"context"
	"log/slog"
	"time"
)

// Batch is an immutable, locally-encoded prefix of the hot log, built once
// per tick and only removed from the log after a shard acknowledges it
// (spec.md §4.7, §5: "J reads L's prefix, constructs an immutable encoded
// batch locally, and only on success removes that exact prefix").
type Batch struct {
	IdRangeStart uint64
	LastId       uint64
	Blocks       []BlockWithId
	BytesUsed    uint64
}

// LogSource is the hot log's narrow capability toward the offload job. The
// log remains the sole owner of its blocks; TakeOffloadBatch never
// mutates it, CommitOffload is the only removal path (spec.md §5: "the
// offload job is the sole writer to A and the sole remover from L").
type LogSource interface {
	TakeOffloadBatch(maxBytes uint64) (batch Batch, ok bool)
	CommitOffload(batch Batch)
}

// Offloader is the Offload Job (J): a periodic background task draining
// the oldest chunk of the hot log into the active archive shard
// (spec.md §4.7).
type Offloader struct {
	manager  *Manager
	source   LogSource
	interval time.Duration
	maxBytes uint64
	logger   *slog.Logger

	backoff time.Duration
}

func NewOffloader(manager *Manager, source LogSource, interval time.Duration, maxSegmentSizeBytes uint64, logger *slog.Logger) *Offloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Offloader{
		manager:  manager,
		source:   source,
		interval: interval,
		maxBytes: maxSegmentSizeBytes,
		logger:   logger,
	}
}

// Run ticks until ctx is cancelled. Each tick is one full attempt of
// spec.md §4.7 steps 1-5.
func (o *Offloader) Run(ctx context.Context) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// Tick performs a single offload attempt. Exported so tests and the
// standalone daemon can drive it deterministically instead of waiting on
// the ticker.
func (o *Offloader) Tick(ctx context.Context) {
	batch, ok := o.source.TakeOffloadBatch(o.maxBytes)
	if !ok {
		return
	}

	if err := o.manager.DebitOffloadCycles(); err != nil {
		o.logger.Error("offload tick: insufficient cycles, pausing", "error", err.Error())
		return
	}

	addr, shard, err := o.manager.RequestCapacity(ctx, batch.BytesUsed, batch.IdRangeStart)
	if err != nil {
		o.logger.Warn("offload tick: capacity request failed", "error", err.Error())
		return
	}

	if err := shard.InsertBlocks(ctx, batch.Blocks); err != nil {
		o.logger.Warn("offload tick: insert_blocks failed, retaining batch in log", "shard", string(addr), "error", err.Error())
		return
	}

	o.manager.RecordPlacement(addr, batch.LastId, batch.BytesUsed)
	o.source.CommitOffload(batch)
	o.logger.Info("offload tick: batch archived", "shard", string(addr), "count", len(batch.Blocks), "last_id", batch.LastId)
}
