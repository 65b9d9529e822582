// Package s3store implements the "s3" storage backend: one JSON object per
// document and one object per attachment, under a key prefix of a bucket.
package s3store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/arthur-debert/taskman/taskman/storage"
	"github.com/arthur-debert/taskman/types"
)

// Store is a storage.Backend on an object store. Writes from several
// processes are last-write-wins per object.
type Store struct {
	objects ObjectStore
	prefix  string
	locks   *storage.LockManager
}

// New creates a store keeping its objects under prefix
func New(objects ObjectStore, prefix string) *Store {
	return &Store{
		objects: objects,
		prefix:  strings.Trim(prefix, "/"),
		locks:   storage.NewLockManager(),
	}
}

// Open connects to S3 with cfg and creates a store under prefix
func Open(ctx context.Context, cfg ClientConfig, prefix string) (*Store, error) {
	if cfg.Bucket == "" {
		return nil, types.ConfigError("s3 storage needs a bucket")
	}
	client, err := NewClient(ctx, cfg)
	if err != nil {
		return nil, types.IOError("connect to s3", err)
	}
	return New(client, prefix), nil
}

func (s *Store) docsPrefix() string {
	return path.Join(s.prefix, "docs") + "/"
}

func (s *Store) docKey(id string) string {
	return s.docsPrefix() + url.PathEscape(id) + ".json"
}

func (s *Store) attachmentsPrefix(id string) string {
	return path.Join(s.prefix, "attachments", url.PathEscape(id)) + "/"
}

func (s *Store) attachmentKey(id, name string) string {
	return s.attachmentsPrefix(id) + url.PathEscape(name)
}

func (s *Store) load(ctx context.Context, id string) (types.Document, error) {
	data, err := s.objects.Get(ctx, s.docKey(id))
	if errors.Is(err, ErrObjectNotFound) {
		return nil, types.NotFoundError(id)
	}
	if err != nil {
		return nil, types.IOError("get document", err)
	}
	var doc types.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, types.IOError("decode document", fmt.Errorf("%s: %w", id, err))
	}
	return doc, nil
}

func (s *Store) store(ctx context.Context, doc types.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return types.IOError("encode document", err)
	}
	if err := s.objects.Put(ctx, s.docKey(doc.ID()), data); err != nil {
		return types.IOError("write document", err)
	}
	return nil
}

// Get retrieves a document by id
func (s *Store) Get(ctx context.Context, id string) (types.Document, error) {
	return storage.WithResult(s.locks, storage.ReadOperation, func() (types.Document, error) {
		return s.load(ctx, id)
	})
}

// Put creates or replaces a document
func (s *Store) Put(ctx context.Context, doc types.Document) (string, error) {
	return storage.WithResult(s.locks, storage.WriteOperation, func() (string, error) {
		stored, err := s.load(ctx, doc.ID())
		if err != nil && !types.IsNotFound(err) {
			return "", err
		}
		prepared, err := storage.PrepareWrite(doc, stored)
		if err != nil {
			return "", err
		}
		return prepared.ID(), s.store(ctx, prepared)
	})
}

// Post creates a document, assigning an id when it has none
func (s *Store) Post(ctx context.Context, doc types.Document) (string, error) {
	return storage.WithResult(s.locks, storage.WriteOperation, func() (string, error) {
		prepared := storage.PreparePost(doc)
		_, err := s.load(ctx, prepared.ID())
		switch {
		case err == nil:
			return "", storage.ConflictError(prepared.ID())
		case !types.IsNotFound(err):
			return "", err
		}
		if err := s.store(ctx, prepared); err != nil {
			return "", err
		}
		return prepared.ID(), nil
	})
}

// Remove deletes a document and its attachments
func (s *Store) Remove(ctx context.Context, id string) error {
	return s.locks.Execute(storage.WriteOperation, func() error {
		if _, err := s.load(ctx, id); err != nil {
			return err
		}
		keys, err := s.objects.List(ctx, s.attachmentsPrefix(id))
		if err != nil {
			return types.IOError("list attachments", err)
		}
		for _, key := range keys {
			if err := s.objects.Delete(ctx, key); err != nil {
				return types.IOError("remove attachment", err)
			}
		}
		if err := s.objects.Delete(ctx, s.docKey(id)); err != nil {
			return types.IOError("remove document", err)
		}
		return nil
	})
}

// List returns every document ordered by key
func (s *Store) List(ctx context.Context) ([]types.Document, error) {
	return storage.WithResult(s.locks, storage.ReadOperation, func() ([]types.Document, error) {
		keys, err := s.objects.List(ctx, s.docsPrefix())
		if err != nil {
			return nil, types.IOError("list documents", err)
		}
		docs := make([]types.Document, 0, len(keys))
		for _, key := range keys {
			escaped := strings.TrimSuffix(strings.TrimPrefix(key, s.docsPrefix()), ".json")
			id, err := url.PathUnescape(escaped)
			if err != nil {
				continue
			}
			doc, err := s.load(ctx, id)
			if types.IsNotFound(err) {
				continue
			}
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
		return docs, nil
	})
}

// GetAttachment returns the attachment bytes
func (s *Store) GetAttachment(ctx context.Context, id, name string) ([]byte, error) {
	return storage.WithResult(s.locks, storage.ReadOperation, func() ([]byte, error) {
		doc, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		if _, ok := doc.Attachments()[name]; !ok {
			return nil, types.AttachmentNotFoundError(id, name)
		}
		data, err := s.objects.Get(ctx, s.attachmentKey(id, name))
		if errors.Is(err, ErrObjectNotFound) {
			return nil, types.AttachmentNotFoundError(id, name)
		}
		if err != nil {
			return nil, types.IOError("get attachment", err)
		}
		return data, nil
	})
}

// PutAttachment stores the bytes first, then the metadata on the document
func (s *Store) PutAttachment(ctx context.Context, id, name, contentType string, data []byte) error {
	return s.locks.Execute(storage.WriteOperation, func() error {
		doc, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if err := s.objects.Put(ctx, s.attachmentKey(id, name), data); err != nil {
			return types.IOError("write attachment", err)
		}
		doc.SetAttachment(name, storage.AttachmentInfoFor(contentType, data))
		return s.store(ctx, doc)
	})
}

// RemoveAttachment deletes one attachment
func (s *Store) RemoveAttachment(ctx context.Context, id, name string) error {
	return s.locks.Execute(storage.WriteOperation, func() error {
		doc, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if _, ok := doc.Attachments()[name]; !ok {
			return types.AttachmentNotFoundError(id, name)
		}
		if err := s.objects.Delete(ctx, s.attachmentKey(id, name)); err != nil {
			return types.IOError("remove attachment", err)
		}
		doc.DeleteAttachment(name)
		return s.store(ctx, doc)
	})
}

// Close is a no-op; the S3 client holds no resources that need releasing
func (s *Store) Close() error {
	return nil
}
