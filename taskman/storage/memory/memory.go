// Package memory provides an in-memory storage backend for tests and
// ephemeral sessions.
package memory

import (
	"context"
	"sort"

	"github.com/arthur-debert/taskman/taskman/storage"
	"github.com/arthur-debert/taskman/types"
)

type entry struct {
	doc         types.Document
	attachments map[string][]byte
	seq         int
}

// Store is an in-memory implementation of storage.Backend. Listing order is
// the order in which documents were first written.
type Store struct {
	locks *storage.LockManager
	docs  map[string]*entry
	seq   int
}

// New creates an empty store
func New() *Store {
	return &Store{
		locks: storage.NewLockManager(),
		docs:  make(map[string]*entry),
	}
}

// Get retrieves a document by id
func (s *Store) Get(_ context.Context, id string) (types.Document, error) {
	return storage.WithResult(s.locks, storage.ReadOperation, func() (types.Document, error) {
		e, ok := s.docs[id]
		if !ok {
			return nil, types.NotFoundError(id)
		}
		return e.doc.Clone(), nil
	})
}

// Put creates or replaces a document
func (s *Store) Put(_ context.Context, doc types.Document) (string, error) {
	return storage.WithResult(s.locks, storage.WriteOperation, func() (string, error) {
		var stored types.Document
		e, ok := s.docs[doc.ID()]
		if ok {
			stored = e.doc
		}
		prepared, err := storage.PrepareWrite(doc, stored)
		if err != nil {
			return "", err
		}
		if ok {
			e.doc = prepared
		} else {
			s.insertLocked(prepared)
		}
		return prepared.ID(), nil
	})
}

// Post creates a document, assigning an id when it has none
func (s *Store) Post(_ context.Context, doc types.Document) (string, error) {
	return storage.WithResult(s.locks, storage.WriteOperation, func() (string, error) {
		prepared := storage.PreparePost(doc)
		if _, exists := s.docs[prepared.ID()]; exists {
			return "", storage.ConflictError(prepared.ID())
		}
		s.insertLocked(prepared)
		return prepared.ID(), nil
	})
}

func (s *Store) insertLocked(doc types.Document) {
	s.seq++
	s.docs[doc.ID()] = &entry{
		doc:         doc,
		attachments: make(map[string][]byte),
		seq:         s.seq,
	}
}

// Remove deletes a document and its attachments
func (s *Store) Remove(_ context.Context, id string) error {
	return s.locks.Execute(storage.WriteOperation, func() error {
		if _, ok := s.docs[id]; !ok {
			return types.NotFoundError(id)
		}
		delete(s.docs, id)
		return nil
	})
}

// List returns all documents in insertion order
func (s *Store) List(_ context.Context) ([]types.Document, error) {
	return storage.WithResult(s.locks, storage.ReadOperation, func() ([]types.Document, error) {
		return s.collectLocked(func(types.Document) bool { return true }), nil
	})
}

// ListType returns the documents of one type in insertion order
func (s *Store) ListType(_ context.Context, docType string) ([]types.Document, error) {
	return storage.WithResult(s.locks, storage.ReadOperation, func() ([]types.Document, error) {
		return s.collectLocked(func(d types.Document) bool { return d.Type() == docType }), nil
	})
}

func (s *Store) collectLocked(keep func(types.Document) bool) []types.Document {
	entries := make([]*entry, 0, len(s.docs))
	for _, e := range s.docs {
		if keep(e.doc) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	docs := make([]types.Document, len(entries))
	for i, e := range entries {
		docs[i] = e.doc.Clone()
	}
	return docs
}

// GetAttachment returns a copy of the attachment bytes
func (s *Store) GetAttachment(_ context.Context, id, name string) ([]byte, error) {
	return storage.WithResult(s.locks, storage.ReadOperation, func() ([]byte, error) {
		e, ok := s.docs[id]
		if !ok {
			return nil, types.NotFoundError(id)
		}
		data, ok := e.attachments[name]
		if !ok {
			return nil, types.AttachmentNotFoundError(id, name)
		}
		cpy := make([]byte, len(data))
		copy(cpy, data)
		return cpy, nil
	})
}

// PutAttachment stores attachment bytes and records their metadata
func (s *Store) PutAttachment(_ context.Context, id, name, contentType string, data []byte) error {
	return s.locks.Execute(storage.WriteOperation, func() error {
		e, ok := s.docs[id]
		if !ok {
			return types.NotFoundError(id)
		}
		cpy := make([]byte, len(data))
		copy(cpy, data)
		e.attachments[name] = cpy
		e.doc.SetAttachment(name, storage.AttachmentInfoFor(contentType, data))
		return nil
	})
}

// RemoveAttachment deletes one attachment
func (s *Store) RemoveAttachment(_ context.Context, id, name string) error {
	return s.locks.Execute(storage.WriteOperation, func() error {
		e, ok := s.docs[id]
		if !ok {
			return types.NotFoundError(id)
		}
		if _, ok := e.attachments[name]; !ok {
			return types.AttachmentNotFoundError(id, name)
		}
		delete(e.attachments, name)
		e.doc.DeleteAttachment(name)
		return nil
	})
}

// Close is a no-op
func (s *Store) Close() error {
	return nil
}
