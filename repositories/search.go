package repositories

import (
	"clchat/contract"
	"clchat/domain/chat"
	"context"
	"log/slog"
	"strings"

	"github.com/blugelabs/bluge"
	"github.com/google/uuid"
)

// SearchRepository maintains the full-text index over message content.
// It is a side channel fed after persistence: Badger stays the source of
// truth, the index only answers /api/search.
type SearchRepository struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSearchRepository(writer *bluge.Writer, log *slog.Logger) *SearchRepository {
	return &SearchRepository{writer: writer, log: log}
}

// Index adds a batch of persisted messages. Attachment payloads are skipped;
// there is nothing textual to search in an opaque blob.
func (r *SearchRepository) Index(batch []chat.Message) error {
	b := bluge.NewBatch()
	indexed := 0
	for _, m := range batch {
		if m.Kind != chat.KindText {
			continue
		}
		doc := bluge.NewDocument(m.ID.String()).
			AddField(bluge.NewTextField("content", m.Content).StoreValue()).
			AddField(bluge.NewKeywordField("sender", m.Sender).StoreValue()).
			AddField(bluge.NewDateTimeField("timestamp", m.Timestamp))
		b.Update(doc.ID(), doc)
		indexed++
	}
	if indexed == 0 {
		return nil
	}
	return r.writer.Batch(b)
}

// Search runs a match query over message content, best score first.
func (r *SearchRepository) Search(ctx context.Context, terms string, limit int) ([]contract.SearchHit, error) {
	if strings.TrimSpace(terms) == "" {
		return nil, nil
	}

	reader, err := r.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := reader.Close(); err != nil {
			r.log.Warn("Failed to close index reader", "error", err)
		}
	}()

	query := bluge.NewMatchQuery(terms).SetField("content")
	request := bluge.NewTopNSearch(limit, query)

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var hits []contract.SearchHit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		hit := contract.SearchHit{Score: match.Score}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				if id, parseErr := uuid.Parse(string(value)); parseErr == nil {
					hit.MessageID = id
				}
			case "sender":
				hit.Sender = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
