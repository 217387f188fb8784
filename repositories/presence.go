package repositories

import (
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const seenPrefix = "seen:"

// SeenRepository persists last-seen timestamps under "seen:{identity}" so
// the presence snapshot keeps listing offline identities across restarts.
type SeenRepository struct {
	db *badger.DB
}

func NewSeenRepository(db *badger.DB) *SeenRepository {
	return &SeenRepository{db: db}
}

func (r *SeenRepository) RecordSeen(identity string, at time.Time) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(seenPrefix+identity), []byte(at.UTC().Format(time.RFC3339Nano)))
	})
}

func (r *SeenRepository) AllSeen() (map[string]time.Time, error) {
	out := make(map[string]time.Time)
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(seenPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			identity := strings.TrimPrefix(string(item.Key()), seenPrefix)
			err := item.Value(func(value []byte) error {
				at, err := time.Parse(time.RFC3339Nano, string(value))
				if err != nil {
					// A corrupt entry should not sink the whole snapshot.
					return nil
				}
				out[identity] = at
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
