package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

const (
	profilesBktName = "profiles"
	messagesBktName = "messages"
	commentsBktName = "comments"
)

// Bolt is a storage that uses BoltDB as a backend.
type Bolt struct {
	db *bolt.DB
}

// NewBolt creates new Bolt storage at the given file path.
func NewBolt(file string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(file), 0o700); err != nil {
		return nil, fmt.Errorf("make parent dir for %s: %w", file, err)
	}

	db, err := bolt.Open(file, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to make boltdb for %s: %w", file, err)
	}

	buckets := []string{profilesBktName, messagesBktName, commentsBktName}
	for _, kind := range MarkKinds {
		buckets = append(buckets, string(kind))
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create top-level bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("make buckets: %w", err)
	}

	return &Bolt{db: db}, nil
}

// GetProfile returns visitor's profile from storage.
func (b *Bolt) GetProfile(_ context.Context, visitorID string) (p Profile, err error) {
	err = b.db.View(func(tx *bolt.Tx) error {
		bts := tx.Bucket([]byte(profilesBktName)).Get([]byte(visitorID))
		if bts == nil {
			return ErrNotFound
		}

		if err := json.Unmarshal(bts, &p); err != nil {
			return fmt.Errorf("unmarshal profile: %w", err)
		}

		return nil
	})
	if err != nil {
		return Profile{}, fmt.Errorf("view storage: %w", err)
	}

	return p, nil
}

// PutProfile puts profile to storage, replacing the previous one.
func (b *Bolt) PutProfile(_ context.Context, p Profile) error {
	return b.putJSON(profilesBktName, p.VisitorID, p)
}

// DeleteProfile removes visitor's profile from storage.
func (b *Bolt) DeleteProfile(_ context.Context, visitorID string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(profilesBktName)).Delete([]byte(visitorID)); err != nil {
			return fmt.Errorf("remove: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update storage: %w", err)
	}

	return nil
}

// PutMessage puts contact message to storage.
func (b *Bolt) PutMessage(_ context.Context, msg ContactMessage) error {
	return b.putJSON(messagesBktName, msg.ID, msg)
}

// ListMessages returns all contact messages from storage.
func (b *Bolt) ListMessages(context.Context) ([]ContactMessage, error) {
	var result []ContactMessage
	err := b.db.View(func(tx *bolt.Tx) error {
		err := tx.Bucket([]byte(messagesBktName)).ForEach(func(k, v []byte) error {
			var msg ContactMessage
			if err := json.Unmarshal(v, &msg); err != nil {
				return fmt.Errorf("unmarshal message %s: %w", k, err)
			}
			result = append(result, msg)
			return nil
		})
		if err != nil {
			return fmt.Errorf("foreach: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("view storage: %w", err)
	}
	return result, nil
}

// Toggle flips the mark of the given item for the visitor and
// returns whether the item is marked after the flip.
func (b *Bolt) Toggle(_ context.Context, kind MarkKind, visitorID, itemID string) (marked bool, err error) {
	err = b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.Bucket([]byte(kind)).CreateBucketIfNotExists([]byte(visitorID))
		if err != nil {
			return fmt.Errorf("make visitor bucket: %w", err)
		}

		if bkt.Get([]byte(itemID)) != nil {
			return bkt.Delete([]byte(itemID))
		}

		marked = true
		return bkt.Put([]byte(itemID), []byte{1})
	})
	if err != nil {
		return false, fmt.Errorf("update storage: %w", err)
	}

	return marked, nil
}

// Mark marks the given item for the visitor, it is no-op for
// already marked items.
func (b *Bolt) Mark(_ context.Context, kind MarkKind, visitorID, itemID string) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.Bucket([]byte(kind)).CreateBucketIfNotExists([]byte(visitorID))
		if err != nil {
			return fmt.Errorf("make visitor bucket: %w", err)
		}
		return bkt.Put([]byte(itemID), []byte{1})
	})
	if err != nil {
		return fmt.Errorf("update storage: %w", err)
	}

	return nil
}

// ListMarks returns ids of items marked by the visitor, in key order.
func (b *Bolt) ListMarks(_ context.Context, kind MarkKind, visitorID string) ([]string, error) {
	result := []string{}
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(kind)).Bucket([]byte(visitorID))
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(k, _ []byte) error {
			result = append(result, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("view storage: %w", err)
	}
	return result, nil
}

// CountMarks returns the number of visitors who marked the item.
func (b *Bolt) CountMarks(_ context.Context, kind MarkKind, itemID string) (int, error) {
	count := 0
	err := b.db.View(func(tx *bolt.Tx) error {
		kindBkt := tx.Bucket([]byte(kind))
		return kindBkt.ForEach(func(visitorID, v []byte) error {
			if v != nil {
				return nil // not a visitor bucket
			}
			if kindBkt.Bucket(visitorID).Get([]byte(itemID)) != nil {
				count++
			}
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("view storage: %w", err)
	}
	return count, nil
}

// PutComment appends the comment to its discussion.
func (b *Bolt) PutComment(_ context.Context, c Comment) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bkt, err := tx.Bucket([]byte(commentsBktName)).CreateBucketIfNotExists([]byte(c.DiscussionID))
		if err != nil {
			return fmt.Errorf("make discussion bucket: %w", err)
		}

		seq, err := bkt.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}

		bts, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal comment: %w", err)
		}

		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bkt.Put(key, bts)
	})
	if err != nil {
		return fmt.Errorf("update storage: %w", err)
	}
	return nil
}

// ListComments returns comments of the discussion in posting order.
func (b *Bolt) ListComments(_ context.Context, discussionID string) ([]Comment, error) {
	result := []Comment{}
	err := b.db.View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(commentsBktName)).Bucket([]byte(discussionID))
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(k, v []byte) error {
			var c Comment
			if err := json.Unmarshal(v, &c); err != nil {
				return fmt.Errorf("unmarshal comment %x: %w", k, err)
			}
			result = append(result, c)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("view storage: %w", err)
	}
	return result, nil
}

// Close closes the storage.
func (b *Bolt) Close() error { return b.db.Close() }

func (b *Bolt) putJSON(bucket, key string, v any) error {
	err := b.db.Update(func(tx *bolt.Tx) error {
		bts, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal %s entry: %w", bucket, err)
		}

		if err := tx.Bucket([]byte(bucket)).Put([]byte(key), bts); err != nil {
			return fmt.Errorf("put %s entry to storage: %w", bucket, err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("update storage: %w", err)
	}

	return nil
}
