// Package types holds the data structures shared by every taskman package:
// documents, attachment metadata, listing rows and the error taxonomy.
package types

import (
	"fmt"
	"sort"
)

// Reserved document keys
const (
	IDKey          = "_id"
	TypeKey        = "type"
	AttachmentsKey = "_attachments"
)

// Well-known values of the "type" discriminator
const (
	TypeProject              = "Project"
	TypeState                = "State"
	TypeTask                 = "Task"
	TypeStorageConfiguration = "Storage Configuration"
)

// Document is a stored JSON-like record. Apart from the identifier and the
// "type" discriminator no field is mandatory.
type Document map[string]any

// AttachmentInfo describes one attachment of a document. The bytes themselves
// are stored by the backend and fetched separately.
type AttachmentInfo struct {
	ContentType string `json:"content_type"`
	Length      int    `json:"length"`
	Digest      string `json:"digest"`
}

// ID returns the document identifier, or "" when unset
func (d Document) ID() string {
	if d == nil {
		return ""
	}
	id, _ := d[IDKey].(string)
	return id
}

// SetID sets the document identifier
func (d Document) SetID(id string) {
	d[IDKey] = id
}

// Type returns the "type" discriminator
func (d Document) Type() string {
	if d == nil {
		return ""
	}
	t, _ := d[TypeKey].(string)
	return t
}

// String returns the string value of a field, or "" if absent or not a string
func (d Document) String(field string) string {
	s, _ := d[field].(string)
	return s
}

// Clone returns a deep copy of the document. Nested maps and slices are
// copied so callers can mutate the result freely.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case Document:
		return val.Clone()
	case []any:
		s := make([]any, len(val))
		for i, inner := range val {
			s[i] = cloneValue(inner)
		}
		return s
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

// Attachments returns the attachment metadata of the document, keyed by name.
// It accepts both the typed form and the decoded-JSON form of the map.
func (d Document) Attachments() map[string]AttachmentInfo {
	out := map[string]AttachmentInfo{}
	switch raw := d[AttachmentsKey].(type) {
	case map[string]AttachmentInfo:
		for k, v := range raw {
			out[k] = v
		}
	case map[string]any:
		for name, v := range raw {
			switch info := v.(type) {
			case AttachmentInfo:
				out[name] = info
			case map[string]any:
				out[name] = attachmentFromMap(info)
			}
		}
	}
	return out
}

// AttachmentNames returns the sorted attachment names
func (d Document) AttachmentNames() []string {
	atts := d.Attachments()
	names := make([]string, 0, len(atts))
	for name := range atts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetAttachment records attachment metadata on the document
func (d Document) SetAttachment(name string, info AttachmentInfo) {
	atts := d.Attachments()
	atts[name] = info
	d.storeAttachments(atts)
}

// DeleteAttachment removes attachment metadata from the document
func (d Document) DeleteAttachment(name string) {
	atts := d.Attachments()
	delete(atts, name)
	d.storeAttachments(atts)
}

func (d Document) storeAttachments(atts map[string]AttachmentInfo) {
	if len(atts) == 0 {
		delete(d, AttachmentsKey)
		return
	}
	raw := make(map[string]any, len(atts))
	for name, info := range atts {
		raw[name] = map[string]any{
			"content_type": info.ContentType,
			"length":       info.Length,
			"digest":       info.Digest,
		}
	}
	d[AttachmentsKey] = raw
}

func attachmentFromMap(m map[string]any) AttachmentInfo {
	info := AttachmentInfo{}
	info.ContentType, _ = m["content_type"].(string)
	info.Digest, _ = m["digest"].(string)
	switch n := m["length"].(type) {
	case int:
		info.Length = n
	case int64:
		info.Length = int(n)
	case float64:
		info.Length = int(n)
	case string:
		_, _ = fmt.Sscanf(n, "%d", &info.Length)
	}
	return info
}
