// Package storage defines the document backend contract used by taskman and
// the query-capable Handle built on top of it.
//
// Backends only need to store documents and attachments; filtering, sorting
// and counting are done by the Handle through the query package, so every
// backend answers AllDocs the same way.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/arthur-debert/taskman/types"
)

// Backend is the document storage contract.
//
// Get, Remove and the attachment operations return an ErrNotFound error for
// missing documents or attachments. Put requires an identifier and keeps the
// attachments already stored for the document; Post assigns an identifier
// when the document has none. Removing a document removes its attachments.
// Returned documents are copies the caller may modify.
type Backend interface {
	Get(ctx context.Context, id string) (types.Document, error)
	Put(ctx context.Context, doc types.Document) (string, error)
	Post(ctx context.Context, doc types.Document) (string, error)
	Remove(ctx context.Context, id string) error

	// List returns every stored document in a stable order
	List(ctx context.Context) ([]types.Document, error)

	GetAttachment(ctx context.Context, id, name string) ([]byte, error)
	PutAttachment(ctx context.Context, id, name, contentType string, data []byte) error
	RemoveAttachment(ctx context.Context, id, name string) error

	Close() error
}

// TypeLister is implemented by backends able to list the documents of one
// type without loading the others
type TypeLister interface {
	ListType(ctx context.Context, docType string) ([]types.Document, error)
}

// NewID returns a fresh document identifier
func NewID() string {
	return uuid.NewString()
}

// Digest returns the digest recorded in attachment metadata
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256-" + hex.EncodeToString(sum[:])
}

// AttachmentInfoFor builds the metadata recorded for an attachment
func AttachmentInfoFor(contentType string, data []byte) types.AttachmentInfo {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return types.AttachmentInfo{
		ContentType: contentType,
		Length:      len(data),
		Digest:      Digest(data),
	}
}

// PrepareWrite returns the copy of doc a backend stores on Put: attachment
// metadata always comes from the stored version, never from the caller.
func PrepareWrite(doc, stored types.Document) (types.Document, error) {
	if doc.ID() == "" {
		return nil, types.ValidationError("Cannot save document", "document has no "+types.IDKey)
	}
	out := doc.Clone()
	delete(out, types.AttachmentsKey)
	for name, info := range stored.Attachments() {
		out.SetAttachment(name, info)
	}
	return out, nil
}

// PreparePost assigns an identifier to a copy of doc when it has none
func PreparePost(doc types.Document) types.Document {
	out := doc.Clone()
	if out == nil {
		out = types.Document{}
	}
	if out.ID() == "" {
		out.SetID(NewID())
	}
	delete(out, types.AttachmentsKey)
	return out
}

// ConflictError reports a Post on an identifier that is already used
func ConflictError(id string) *types.Error {
	return types.ValidationError("Cannot create document", fmt.Sprintf("document %q already exists", id))
}
