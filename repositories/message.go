package repositories

import (
	"clchat/domain/chat"
	"clchat/errors"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const (
	timelinePrefix = "msg:"
	idPrefix       = "msgid:"
)

// MessageRepository persists chat records in BadgerDB.
//
// The timeline key is "msg:{timestamp_padded}:{uuid}":
//  1. 19-digit zero padding makes lexicographic order chronological.
//  2. The UUID disambiguates two messages persisted at the same nanosecond.
//
// A secondary "msgid:{uuid}" entry points at the timeline key so reaction
// updates and lookups by id stay O(1) instead of scanning the timeline.
type MessageRepository struct {
	db           *badger.DB
	log          *slog.Logger
	historyLimit *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, historyLimit *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, historyLimit: historyLimit}
}

func timelineKey(m chat.Message) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", timelinePrefix, m.Timestamp.UnixNano(), m.ID))
}

func idKey(id uuid.UUID) []byte {
	return []byte(idPrefix + id.String())
}

func (r *MessageRepository) Store(m chat.Message) error {
	value, err := json.Marshal(m)
	if err != nil {
		return err
	}
	key := timelineKey(m)
	return r.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(idKey(m.ID), key)
	})
}

// History returns all messages ordered by timestamp ascending. When a
// history limit is configured, only the most recent messages are kept, still
// returned oldest first.
func (r *MessageRepository) History() ([]chat.Message, error) {
	var raw [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(timelinePrefix)
		// Seek past the newest possible timestamp, then walk backwards so a
		// limit keeps the most recent records.
		it.Seek(append(prefix, []byte("9999999999999999999:")...))
		for ; it.ValidForPrefix(prefix); it.Next() {
			if r.historyLimit != nil && len(raw) == *r.historyLimit {
				r.log.Debug(fmt.Sprintf("History limit of %d messages reached", *r.historyLimit))
				break
			}
			if err := it.Item().Value(func(value []byte) error {
				raw = append(raw, append([]byte(nil), value...))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages := make([]chat.Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var m chat.Message
		if err := json.Unmarshal(raw[i], &m); err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// PairHistory returns the private conversation between a and b, both
// directions, ordered by timestamp ascending. Public messages are excluded.
func (r *MessageRepository) PairHistory(a, b string) ([]chat.Message, error) {
	all, err := r.History()
	if err != nil {
		return nil, err
	}
	var out []chat.Message
	for _, m := range all {
		if !m.Private() {
			continue
		}
		if (m.Sender == a && *m.Receiver == b) || (m.Sender == b && *m.Receiver == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MessageRepository) ByID(id uuid.UUID) (chat.Message, error) {
	var m chat.Message
	err := r.db.View(func(txn *badger.Txn) error {
		value, err := r.fetchByID(txn, id)
		if err != nil {
			return err
		}
		return json.Unmarshal(value, &m)
	})
	return m, err
}

// SetReactions rewrites only the reactions of an existing record. Callers
// serialize per message id; the record itself stays immutable otherwise.
func (r *MessageRepository) SetReactions(id uuid.UUID, reactions chat.Reactions) error {
	return r.db.Update(func(txn *badger.Txn) error {
		value, err := r.fetchByID(txn, id)
		if err != nil {
			return err
		}
		var m chat.Message
		if err := json.Unmarshal(value, &m); err != nil {
			return err
		}
		m.Reactions = reactions
		updated, err := json.Marshal(m)
		if err != nil {
			return err
		}
		return txn.Set(timelineKey(m), updated)
	})
}

func (r *MessageRepository) fetchByID(txn *badger.Txn, id uuid.UUID) ([]byte, error) {
	item, err := txn.Get(idKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, errors.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	key, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	record, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return nil, errors.ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return record.ValueCopy(nil)
}
