// Package jsonfile implements the "local" storage backend: every document
// and attachment of a storage lives in one JSON file, guarded by a file
// lock so several processes can share it.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/arthur-debert/taskman/taskman/storage"
	"github.com/arthur-debert/taskman/types"
)

const fileVersion = "1.0"

// storeData is the JSON file structure
type storeData struct {
	Documents   []types.Document             `json:"documents"`
	Attachments map[string]map[string][]byte `json:"attachments,omitempty"`
	Metadata    metadata                     `json:"metadata"`
}

type metadata struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a storage.Backend persisted to a single JSON file
type Store struct {
	filePath    string
	fileLock    *flock.Flock
	locks       *storage.LockManager
	lockTimeout time.Duration
	retryDelay  time.Duration
}

// Option configures a Store
type Option func(*Store)

// WithLockTimeout bounds how long an operation waits for the file lock
func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.lockTimeout = d
	}
}

// New creates a store persisted at filePath. The file and its directory are
// created on first write.
func New(filePath string, opts ...Option) *Store {
	s := &Store{
		filePath:    filePath,
		fileLock:    flock.New(filePath + ".lock"),
		locks:       storage.NewLockManager(),
		lockTimeout: 3 * time.Second,
		retryDelay:  100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the data file path
func (s *Store) Path() string {
	return s.filePath
}

// withFileLock holds the cross-process lock while fn runs
func (s *Store) withFileLock(ctx context.Context, fn func() error) error {
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return types.IOError("create data directory", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	locked, err := s.fileLock.TryLockContext(ctx, s.retryDelay)
	if err != nil {
		return types.IOError("acquire file lock", err)
	}
	if !locked {
		return types.IOError("acquire file lock", errors.New("could not acquire file lock"))
	}
	defer func() { _ = s.fileLock.Unlock() }()

	return fn()
}

// read runs fn on a snapshot of the file
func (s *Store) read(ctx context.Context, fn func(*storeData) error) error {
	return s.locks.Execute(storage.ReadOperation, func() error {
		return s.withFileLock(ctx, func() error {
			data, err := s.load()
			if err != nil {
				return err
			}
			return fn(data)
		})
	})
}

// update loads the file, lets fn modify it and saves it back, all under the
// file lock. Nothing is written when fn fails.
func (s *Store) update(ctx context.Context, fn func(*storeData) error) error {
	return s.locks.Execute(storage.WriteOperation, func() error {
		return s.withFileLock(ctx, func() error {
			data, err := s.load()
			if err != nil {
				return err
			}
			if err := fn(data); err != nil {
				return err
			}
			data.Metadata.UpdatedAt = time.Now()
			return s.save(data)
		})
	})
}

func (s *Store) load() (*storeData, error) {
	raw, err := os.ReadFile(s.filePath)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(raw) == 0) {
		now := time.Now()
		return &storeData{
			Documents:   []types.Document{},
			Attachments: map[string]map[string][]byte{},
			Metadata:    metadata{Version: fileVersion, CreatedAt: now, UpdatedAt: now},
		}, nil
	}
	if err != nil {
		return nil, types.IOError("read data file", err)
	}

	var data storeData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, types.IOError("parse data file", fmt.Errorf("%s: %w", s.filePath, err))
	}
	if data.Attachments == nil {
		data.Attachments = map[string]map[string][]byte{}
	}
	return &data, nil
}

// save writes atomically through a temporary file
func (s *Store) save(data *storeData) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return types.IOError("encode data file", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, raw, 0644); err != nil {
		return types.IOError("write data file", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		_ = os.Remove(tmpFile)
		return types.IOError("replace data file", err)
	}
	return nil
}

func indexOf(data *storeData, id string) int {
	for i, doc := range data.Documents {
		if doc.ID() == id {
			return i
		}
	}
	return -1
}

// Get retrieves a document by id
func (s *Store) Get(ctx context.Context, id string) (types.Document, error) {
	var doc types.Document
	err := s.read(ctx, func(data *storeData) error {
		i := indexOf(data, id)
		if i < 0 {
			return types.NotFoundError(id)
		}
		doc = data.Documents[i]
		return nil
	})
	return doc, err
}

// Put creates or replaces a document
func (s *Store) Put(ctx context.Context, doc types.Document) (string, error) {
	var id string
	err := s.update(ctx, func(data *storeData) error {
		i := indexOf(data, doc.ID())
		var stored types.Document
		if i >= 0 {
			stored = data.Documents[i]
		}
		prepared, err := storage.PrepareWrite(doc, stored)
		if err != nil {
			return err
		}
		if i >= 0 {
			data.Documents[i] = prepared
		} else {
			data.Documents = append(data.Documents, prepared)
		}
		id = prepared.ID()
		return nil
	})
	return id, err
}

// Post creates a document, assigning an id when it has none
func (s *Store) Post(ctx context.Context, doc types.Document) (string, error) {
	prepared := storage.PreparePost(doc)
	err := s.update(ctx, func(data *storeData) error {
		if indexOf(data, prepared.ID()) >= 0 {
			return storage.ConflictError(prepared.ID())
		}
		data.Documents = append(data.Documents, prepared)
		return nil
	})
	if err != nil {
		return "", err
	}
	return prepared.ID(), nil
}

// Remove deletes a document and its attachments
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.update(ctx, func(data *storeData) error {
		i := indexOf(data, id)
		if i < 0 {
			return types.NotFoundError(id)
		}
		data.Documents = append(data.Documents[:i], data.Documents[i+1:]...)
		delete(data.Attachments, id)
		return nil
	})
}

// List returns every document in file order
func (s *Store) List(ctx context.Context) ([]types.Document, error) {
	var docs []types.Document
	err := s.read(ctx, func(data *storeData) error {
		docs = data.Documents
		return nil
	})
	return docs, err
}

// GetAttachment returns the attachment bytes
func (s *Store) GetAttachment(ctx context.Context, id, name string) ([]byte, error) {
	var out []byte
	err := s.read(ctx, func(data *storeData) error {
		if indexOf(data, id) < 0 {
			return types.NotFoundError(id)
		}
		content, ok := data.Attachments[id][name]
		if !ok {
			return types.AttachmentNotFoundError(id, name)
		}
		out = content
		return nil
	})
	return out, err
}

// PutAttachment stores attachment bytes and records their metadata
func (s *Store) PutAttachment(ctx context.Context, id, name, contentType string, content []byte) error {
	return s.update(ctx, func(data *storeData) error {
		i := indexOf(data, id)
		if i < 0 {
			return types.NotFoundError(id)
		}
		if data.Attachments[id] == nil {
			data.Attachments[id] = map[string][]byte{}
		}
		data.Attachments[id][name] = append([]byte(nil), content...)
		data.Documents[i].SetAttachment(name, storage.AttachmentInfoFor(contentType, content))
		return nil
	})
}

// RemoveAttachment deletes one attachment
func (s *Store) RemoveAttachment(ctx context.Context, id, name string) error {
	return s.update(ctx, func(data *storeData) error {
		i := indexOf(data, id)
		if i < 0 {
			return types.NotFoundError(id)
		}
		if _, ok := data.Attachments[id][name]; !ok {
			return types.AttachmentNotFoundError(id, name)
		}
		delete(data.Attachments[id], name)
		if len(data.Attachments[id]) == 0 {
			delete(data.Attachments, id)
		}
		data.Documents[i].DeleteAttachment(name)
		return nil
	})
}

// Close releases the file lock if it is held. The lock file stays: another
// process may hold a lock on it.
func (s *Store) Close() error {
	return s.fileLock.Unlock()
}
