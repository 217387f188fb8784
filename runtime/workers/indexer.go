package workers

import (
	"clchat/contract"
	"clchat/domain/chat"
	"context"
	"log/slog"
	"time"
)

// IndexerWorker feeds persisted messages into the search index. It buffers
// and flushes either on a size threshold or a time deadline, so a quiet chat
// does not leave documents stuck in memory and a busy one amortizes batch
// writes. Index failures are logged and dropped: the index is best effort,
// Badger history is the source of truth.
type IndexerWorker struct {
	index         contract.SearchIndex
	input         <-chan chat.Message
	batchSize     int
	flushInterval time.Duration
	log           *slog.Logger

	pending []chat.Message
}

func NewIndexerWorker(
	index contract.SearchIndex,
	input <-chan chat.Message,
	batchSize int,
	flushInterval time.Duration,
	log *slog.Logger,
) *IndexerWorker {
	return &IndexerWorker{
		index:         index,
		input:         input,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		log:           log,
		pending:       make([]chat.Message, 0, batchSize),
	}
}

func (w *IndexerWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.flush()
			w.log.Debug("Stopping indexer worker")
			return nil
		case msg, ok := <-w.input:
			if !ok {
				w.flush()
				return nil
			}
			w.pending = append(w.pending, msg)
			if len(w.pending) >= w.batchSize {
				w.flush()
			}
		case <-ticker.C:
			w.flush()
		}
	}
}

func (w *IndexerWorker) flush() {
	if len(w.pending) == 0 {
		return
	}
	batch := w.pending
	w.pending = make([]chat.Message, 0, w.batchSize)

	if err := w.index.Index(batch); err != nil {
		w.log.Warn("Search index batch lost", "size", len(batch), "error", err)
	}
}
