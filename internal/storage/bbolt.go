// Package storage persists launcher session and crash history to a bbolt
// database in the data directory. Storage failures are reported to the
// caller for logging but must never block or abort supervision.
package storage

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
)

const (
	dbFileName = "history.db"

	openTimeout = 5 * time.Second
)

var (
	bucketSessions = []byte("sessions")
	bucketCrashes  = []byte("crashes")
)

// BoltDB wraps the launcher history database.
type BoltDB struct {
	db     *bolt.DB
	logger *zap.Logger
}

// Open opens (or creates) the history database inside dataDir.
func Open(dataDir string, logger *zap.Logger) (*BoltDB, error) {
	path := filepath.Join(dataDir, dbFileName)

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketSessions, bucketCrashes} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history buckets: %w", err)
	}

	return &BoltDB{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *BoltDB) Close() error {
	return s.db.Close()
}

// sessionKey orders sessions chronologically in the bucket while staying
// stable across re-saves of the same record.
func sessionKey(rec *SessionRecord) []byte {
	return []byte(fmt.Sprintf("%020d/%s", rec.StartedAt.UnixNano(), rec.ID))
}

// SaveSession inserts or overwrites a session record. The supervisor
// re-saves the same record when the session ends.
func (s *BoltDB) SaveSession(rec *SessionRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketSessions).Put(sessionKey(rec), data)
	})
}

// RecordCrash appends a crash record, assigning it a ULID key.
func (s *BoltDB) RecordCrash(rec *CrashRecord) error {
	if rec.ID == "" {
		rec.ID = ulid.MustNew(ulid.Timestamp(rec.At), rand.New(rand.NewSource(rec.At.UnixNano()))).String()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketCrashes).Put([]byte(rec.ID), data)
	})
}

// ListSessions returns up to limit most recent sessions, newest first.
func (s *BoltDB) ListSessions(limit int) ([]*SessionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*SessionRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketSessions).Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var rec SessionRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				s.logger.Warn("Skipping corrupt session record", zap.ByteString("key", k), zap.Error(err))
				continue
			}
			out = append(out, &rec)
		}
		return nil
	})
	return out, err
}

// ListCrashes returns up to limit most recent crash records for a session,
// newest first. An empty session ID matches all sessions.
func (s *BoltDB) ListCrashes(sessionID string, limit int) ([]*CrashRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*CrashRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketCrashes).Cursor()
		for k, v := c.Last(); k != nil && len(out) < limit; k, v = c.Prev() {
			var rec CrashRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				s.logger.Warn("Skipping corrupt crash record", zap.ByteString("key", k), zap.Error(err))
				continue
			}
			if sessionID != "" && rec.SessionID != sessionID {
				continue
			}
			out = append(out, &rec)
		}
		return nil
	})
	return out, err
}
