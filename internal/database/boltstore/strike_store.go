package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"palisade/internal/strikes"

	bolt "go.etcd.io/bbolt"
)

// StrikeStore provides persistent storage for the strike ledger.
type StrikeStore struct {
	db *bolt.DB
}

// AppendStrike durably stores a strike and its actor index entry.
func (s *StrikeStore) AppendStrike(ctx context.Context, strike strikes.Strike) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketStrikes)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketStrikes)
		}

		data, err := json.Marshal(strike)
		if err != nil {
			return fmt.Errorf("failed to marshal strike: %w", err)
		}

		if err := bucket.Put([]byte(strike.ID), data); err != nil {
			return err
		}

		// Index by actor with a timestamp-ordered key so per-actor scans
		// walk strikes chronologically
		actorIndex := tx.Bucket(BucketStrikesByActor)
		if actorIndex == nil {
			return fmt.Errorf("bucket not found: %s", BucketStrikesByActor)
		}
		actorBucket, err := actorIndex.CreateBucketIfNotExists([]byte(strike.ActorID))
		if err != nil {
			return fmt.Errorf("failed to create actor index bucket: %w", err)
		}

		key := fmt.Sprintf("%020d:%s", strike.CreatedAt.UnixNano(), strike.ID)
		return actorBucket.Put([]byte(key), []byte(strike.ID))
	})
}

// GetStrike retrieves a strike by ID.
func (s *StrikeStore) GetStrike(ctx context.Context, id string) (*strikes.Strike, error) {
	var strike *strikes.Strike

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketStrikes)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		strike = &strikes.Strike{}
		return json.Unmarshal(data, strike)
	})

	return strike, err
}

// CountStrikesForActorSince counts an actor's strikes created after the
// specified time.
func (s *StrikeStore) CountStrikesForActorSince(ctx context.Context, actorID string, since time.Time) (int, error) {
	var count int

	err := s.db.View(func(tx *bolt.Tx) error {
		actorIndex := tx.Bucket(BucketStrikesByActor)
		if actorIndex == nil {
			return nil
		}
		actorBucket := actorIndex.Bucket([]byte(actorID))
		if actorBucket == nil {
			return nil
		}

		strikesBucket := tx.Bucket(BucketStrikes)
		if strikesBucket == nil {
			return nil
		}

		cursor := actorBucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			// v is the strike ID
			strikeData := strikesBucket.Get(v)
			if strikeData == nil {
				continue
			}

			var strike strikes.Strike
			if err := json.Unmarshal(strikeData, &strike); err != nil {
				continue
			}

			if strike.CreatedAt.After(since) {
				count++
			}
		}

		return nil
	})

	return count, err
}

// ListStrikesForActor returns an actor's strikes, newest first, capped at
// limit. A limit of 0 or less returns all of them.
func (s *StrikeStore) ListStrikesForActor(ctx context.Context, actorID string, limit int) ([]strikes.Strike, error) {
	var result []strikes.Strike

	err := s.db.View(func(tx *bolt.Tx) error {
		actorIndex := tx.Bucket(BucketStrikesByActor)
		if actorIndex == nil {
			return nil
		}
		actorBucket := actorIndex.Bucket([]byte(actorID))
		if actorBucket == nil {
			return nil
		}

		strikesBucket := tx.Bucket(BucketStrikes)
		if strikesBucket == nil {
			return nil
		}

		// Walk the timestamp-ordered index backwards for newest first
		cursor := actorBucket.Cursor()
		for k, v := cursor.Last(); k != nil; k, v = cursor.Prev() {
			if limit > 0 && len(result) >= limit {
				break
			}

			strikeData := strikesBucket.Get(v)
			if strikeData == nil {
				continue
			}

			var strike strikes.Strike
			if err := json.Unmarshal(strikeData, &strike); err != nil {
				continue
			}
			result = append(result, strike)
		}

		return nil
	})

	return result, err
}

// SetSuspension durably marks an actor as suspended.
func (s *StrikeStore) SetSuspension(ctx context.Context, suspension strikes.Suspension) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketSuspensions)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %s", BucketSuspensions)
		}

		data, err := json.Marshal(suspension)
		if err != nil {
			return fmt.Errorf("failed to marshal suspension: %w", err)
		}

		return bucket.Put([]byte(suspension.ActorID), data)
	})
}

// GetSuspension retrieves an actor's suspension record, or nil if the
// actor is in good standing.
func (s *StrikeStore) GetSuspension(ctx context.Context, actorID string) (*strikes.Suspension, error) {
	var suspension *strikes.Suspension

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketSuspensions)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(actorID))
		if data == nil {
			return nil
		}

		suspension = &strikes.Suspension{}
		return json.Unmarshal(data, suspension)
	})

	return suspension, err
}
