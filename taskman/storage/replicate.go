package storage

import (
	"context"
	"errors"

	"github.com/arthur-debert/taskman/types"
)

// Replicate writes to every sub-storage and reads from the first one that
// answers. There is no synchronisation between sub-storages: a write that
// fails on one of them is reported but not rolled back on the others.
type Replicate struct {
	subs []Backend
}

// NewReplicate creates a replicating backend over subs
func NewReplicate(subs ...Backend) (*Replicate, error) {
	if len(subs) == 0 {
		return nil, types.ConfigError("replicate storage needs at least one sub-storage")
	}
	return &Replicate{subs: subs}, nil
}

// Subs returns the replicated backends
func (r *Replicate) Subs() []Backend {
	return r.subs
}

// Get returns the document from the first sub-storage holding it
func (r *Replicate) Get(ctx context.Context, id string) (types.Document, error) {
	var errs []error
	for _, sub := range r.subs {
		doc, err := sub.Get(ctx, id)
		if err == nil {
			return doc, nil
		}
		errs = append(errs, err)
	}
	return nil, r.readError("get", errs)
}

// Put writes the document to every sub-storage
func (r *Replicate) Put(ctx context.Context, doc types.Document) (string, error) {
	var errs []error
	id := doc.ID()
	for _, sub := range r.subs {
		if _, err := sub.Put(ctx, doc); err != nil {
			errs = append(errs, err)
		}
	}
	return id, r.writeError("put", errs)
}

// Post assigns the identifier once so every sub-storage stores the same id
func (r *Replicate) Post(ctx context.Context, doc types.Document) (string, error) {
	prepared := PreparePost(doc)
	var errs []error
	for _, sub := range r.subs {
		if _, err := sub.Post(ctx, prepared); err != nil {
			errs = append(errs, err)
		}
	}
	return prepared.ID(), r.writeError("post", errs)
}

// Remove deletes the document everywhere. It is not found only when no
// sub-storage had it.
func (r *Replicate) Remove(ctx context.Context, id string) error {
	return r.each("remove", func(sub Backend) error {
		return sub.Remove(ctx, id)
	})
}

// List returns the listing of the first sub-storage that answers
func (r *Replicate) List(ctx context.Context) ([]types.Document, error) {
	var errs []error
	for _, sub := range r.subs {
		docs, err := sub.List(ctx)
		if err == nil {
			return docs, nil
		}
		errs = append(errs, err)
	}
	return nil, r.readError("list", errs)
}

// GetAttachment reads from the first sub-storage holding the attachment
func (r *Replicate) GetAttachment(ctx context.Context, id, name string) ([]byte, error) {
	var errs []error
	for _, sub := range r.subs {
		data, err := sub.GetAttachment(ctx, id, name)
		if err == nil {
			return data, nil
		}
		errs = append(errs, err)
	}
	return nil, r.readError("get attachment", errs)
}

// PutAttachment writes the attachment to every sub-storage
func (r *Replicate) PutAttachment(ctx context.Context, id, name, contentType string, data []byte) error {
	var errs []error
	for _, sub := range r.subs {
		if err := sub.PutAttachment(ctx, id, name, contentType, data); err != nil {
			errs = append(errs, err)
		}
	}
	return r.writeError("put attachment", errs)
}

// RemoveAttachment deletes the attachment everywhere
func (r *Replicate) RemoveAttachment(ctx context.Context, id, name string) error {
	return r.each("remove attachment", func(sub Backend) error {
		return sub.RemoveAttachment(ctx, id, name)
	})
}

// Close closes every sub-storage
func (r *Replicate) Close() error {
	var errs []error
	for _, sub := range r.subs {
		if err := sub.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// each runs a removal on every sub-storage, ignoring the ones that did not
// hold the target as long as one did
func (r *Replicate) each(operation string, fn func(Backend) error) error {
	var failures []error
	notFound := 0
	var firstNotFound error
	for _, sub := range r.subs {
		err := fn(sub)
		switch {
		case err == nil:
		case types.IsNotFound(err):
			notFound++
			if firstNotFound == nil {
				firstNotFound = err
			}
		default:
			failures = append(failures, err)
		}
	}
	if len(failures) > 0 {
		return types.IOError("replicate "+operation, errors.Join(failures...))
	}
	if notFound == len(r.subs) {
		return firstNotFound
	}
	return nil
}

func (r *Replicate) readError(operation string, errs []error) error {
	for _, err := range errs {
		if !types.IsNotFound(err) {
			return types.IOError("replicate "+operation, errors.Join(errs...))
		}
	}
	return errs[0]
}

func (r *Replicate) writeError(operation string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	// every sub-storage refused for the same reason: report it as is
	var first *types.Error
	if len(errs) == len(r.subs) && errors.As(errs[0], &first) {
		same := true
		for _, err := range errs[1:] {
			if !types.IsKind(err, first.Kind) {
				same = false
				break
			}
		}
		if same {
			return errs[0]
		}
	}
	return types.IOError("replicate "+operation, errors.Join(errs...))
}
