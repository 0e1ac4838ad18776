package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MegaGrindStone/stream-chat-ui/internal/models"
	bolt "go.etcd.io/bbolt"
)

// ErrNotFound is returned when a user or session does not exist.
var ErrNotFound = errors.New("not found")

var (
	usersBucket    = []byte("users")
	subjectsBucket = []byte("google-subjects")
	sessionsBucket = []byte("sessions")
)

// BoltDB implements the auth store using a BoltDB backend for persistent storage of users and
// browser sessions. Conversations are never written here.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB creates a new BoltDB instance with the specified file path. It initializes the database
// with required buckets and returns an error if the database cannot be opened or initialized. The
// database file is created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{usersBucket, subjectsBucket, sessionsBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return BoltDB{}, err
	}

	return BoltDB{db: db}, nil
}

// Close releases the database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

// UpsertUser stores the user linked to user.GoogleSubject. If the subject is already linked, the
// existing user keeps its ID and creation time and only the profile fields are refreshed. The stored
// user is returned.
func (b BoltDB) UpsertUser(_ context.Context, user models.User) (models.User, error) {
	err := b.db.Update(func(tx *bolt.Tx) error {
		users := tx.Bucket(usersBucket)
		subjects := tx.Bucket(subjectsBucket)

		if id := subjects.Get([]byte(user.GoogleSubject)); id != nil {
			var existing models.User
			if v := users.Get(id); v != nil {
				if err := json.Unmarshal(v, &existing); err != nil {
					return fmt.Errorf("failed to unmarshal user: %w", err)
				}
				user.ID = existing.ID
				user.CreatedAt = existing.CreatedAt
			}
		}

		v, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}
		if err := users.Put([]byte(user.ID), v); err != nil {
			return err
		}
		return subjects.Put([]byte(user.GoogleSubject), []byte(user.ID))
	})

	return user, err
}

// User retrieves a user by ID.
func (b BoltDB) User(_ context.Context, id string) (models.User, error) {
	var user models.User
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(usersBucket).Get([]byte(id))
		if v == nil {
			return fmt.Errorf("user %s: %w", id, ErrNotFound)
		}
		return json.Unmarshal(v, &user)
	})
	return user, err
}

// AddSession stores a new session keyed by its token.
func (b BoltDB) AddSession(_ context.Context, session models.Session) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		v, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}
		return tx.Bucket(sessionsBucket).Put([]byte(session.Token), v)
	})
}

// Session retrieves a session by token. Expired sessions are reported as not found.
func (b BoltDB) Session(_ context.Context, token string) (models.Session, error) {
	var session models.Session
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(sessionsBucket).Get([]byte(token))
		if v == nil {
			return ErrNotFound
		}
		if err := json.Unmarshal(v, &session); err != nil {
			return fmt.Errorf("failed to unmarshal session: %w", err)
		}
		if session.Expired(time.Now()) {
			return ErrNotFound
		}
		return nil
	})
	return session, err
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (b BoltDB) DeleteSession(_ context.Context, token string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sessionsBucket).Delete([]byte(token))
	})
}

// PurgeExpiredSessions deletes every session that expired before now and returns how many were
// removed.
func (b BoltDB) PurgeExpiredSessions(_ context.Context, now time.Time) (int, error) {
	var purged int
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(sessionsBucket)
		var expired [][]byte
		err := bucket.ForEach(func(k, v []byte) error {
			var session models.Session
			if err := json.Unmarshal(v, &session); err != nil {
				return fmt.Errorf("failed to unmarshal session: %w", err)
			}
			if session.Expired(now) {
				expired = append(expired, append([]byte(nil), k...))
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range expired {
			if err := bucket.Delete(k); err != nil {
				return err
			}
		}
		purged = len(expired)
		return nil
	})
	return purged, err
}
