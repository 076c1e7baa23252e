package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
	"golang.org/x/oauth2"

	"github.com/hyperjump/moodify/internal/apperr"
)

var (
	bucketTokens = []byte("tokens")
	bucketState  = []byte("state")
	keyCurrent   = []byte("current_user")
)

// TokenStore persists OAuth tokens per user in a bbolt file, along with the
// user who logged in last.
type TokenStore struct {
	db *bbolt.DB
}

// OpenTokenStore opens or creates the token file at path. It fails after a
// second if another process holds the file.
func OpenTokenStore(path string) (*TokenStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open token store: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketTokens, bucketState} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &TokenStore{db: db}, nil
}

// Save stores tok for userID, replacing any previous token.
func (s *TokenStore) Save(userID string, tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTokens).Put([]byte(userID), data)
	})
}

// Load returns the token for userID or apperr.ErrAuthRequired.
func (s *TokenStore) Load(userID string) (*oauth2.Token, error) {
	var tok *oauth2.Token
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketTokens).Get([]byte(userID))
		if data == nil {
			return fmt.Errorf("%w: no token for %s", apperr.ErrAuthRequired, userID)
		}
		tok = new(oauth2.Token)
		return json.Unmarshal(data, tok)
	})
	if err != nil {
		return nil, err
	}
	return tok, nil
}

// Delete removes the token for userID and clears it as current user.
func (s *TokenStore) Delete(userID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketTokens).Delete([]byte(userID)); err != nil {
			return err
		}
		state := tx.Bucket(bucketState)
		if string(state.Get(keyCurrent)) == userID {
			return state.Delete(keyCurrent)
		}
		return nil
	})
}

// SetCurrent records userID as the user of CLI commands and unauthenticated
// API requests.
func (s *TokenStore) SetCurrent(userID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketState).Put(keyCurrent, []byte(userID))
	})
}

// Current returns the current user or apperr.ErrAuthRequired when nobody
// has logged in.
func (s *TokenStore) Current() (string, error) {
	var userID string
	err := s.db.View(func(tx *bbolt.Tx) error {
		userID = string(tx.Bucket(bucketState).Get(keyCurrent))
		return nil
	})
	if err != nil {
		return "", err
	}
	if userID == "" {
		return "", fmt.Errorf("%w: not logged in", apperr.ErrAuthRequired)
	}
	return userID, nil
}

// Users lists every user with a stored token.
func (s *TokenStore) Users() ([]string, error) {
	var users []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketTokens).ForEach(func(k, _ []byte) error {
			users = append(users, string(k))
			return nil
		})
	})
	return users, err
}

// Close closes the underlying file.
func (s *TokenStore) Close() error {
	return s.db.Close()
}
