package tasks

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/arthur-debert/taskman/taskman/storage"
	"github.com/arthur-debert/taskman/types"
)

const importHeader = "Storage import error"

// Archive is the portable form of a storage's content
type Archive struct {
	MetadataList   []ArchiveRow        `json:"metadata_list"`
	AttachmentList []ArchiveAttachment `json:"attachment_list"`
}

// ArchiveRow is one exported document
type ArchiveRow struct {
	ID  string         `json:"id"`
	Doc types.Document `json:"doc"`
}

// ArchiveAttachment is one exported attachment, base64 encoded
type ArchiveAttachment struct {
	ID             string `json:"id"`
	AttachmentName string `json:"attachment_name"`
	B64Content     string `json:"b64content"`
}

// Export collects every document and attachment of the connected storage
func (s *Service) Export(ctx context.Context) (*Archive, error) {
	h, err := s.conn.Connect(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := h.AllDocs(ctx, storage.AllDocsOptions{IncludeDocs: true})
	if err != nil {
		return nil, err
	}

	archive := &Archive{
		MetadataList:   make([]ArchiveRow, 0, len(resp.Rows)),
		AttachmentList: make([]ArchiveAttachment, 0),
	}
	for _, row := range resp.Rows {
		archive.MetadataList = append(archive.MetadataList, ArchiveRow{ID: row.ID, Doc: row.Doc})
		for _, name := range row.Doc.AttachmentNames() {
			data, err := h.GetAttachment(ctx, row.ID, name)
			if err != nil {
				return nil, fmt.Errorf("failed to export attachment %s/%s: %w", row.ID, name, err)
			}
			archive.AttachmentList = append(archive.AttachmentList, ArchiveAttachment{
				ID:             row.ID,
				AttachmentName: name,
				B64Content:     base64.StdEncoding.EncodeToString(data),
			})
		}
	}
	return archive, nil
}

// WriteArchive writes a as indented JSON
func WriteArchive(w io.Writer, a *Archive) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(a); err != nil {
		return fmt.Errorf("failed to write archive: %w", err)
	}
	return nil
}

// ReadArchive parses an archive written by WriteArchive
func ReadArchive(r io.Reader) (*Archive, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, types.IOError("read archive", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, types.ValidationError(importHeader, "Empty input")
	}
	var a Archive
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, types.ValidationError(importHeader, "Cannot parse JSON data: "+err.Error())
	}
	return &a, nil
}

// Import writes an archive into the connected storage, documents first,
// and returns the number of objects written. Existing documents with the
// same ids are replaced.
func (s *Service) Import(ctx context.Context, a *Archive) (int, error) {
	for i, row := range a.MetadataList {
		if row.Doc == nil {
			return 0, types.ValidationError(importHeader,
				fmt.Sprintf("Entry %d (id %q) of metadata_list has no document", i, row.ID))
		}
	}

	h, err := s.conn.Connect(ctx)
	if err != nil {
		return 0, err
	}

	count := 0
	contentTypes := make(map[string]map[string]string)
	for _, row := range a.MetadataList {
		doc := row.Doc.Clone()
		if doc.ID() == "" {
			doc.SetID(row.ID)
		}
		byName := make(map[string]string)
		for name, info := range doc.Attachments() {
			byName[name] = info.ContentType
		}
		contentTypes[doc.ID()] = byName

		if _, err := h.Put(ctx, doc); err != nil {
			return count, fmt.Errorf("failed to import document %s: %w", doc.ID(), err)
		}
		count++
	}

	for _, att := range a.AttachmentList {
		data, err := base64.StdEncoding.DecodeString(att.B64Content)
		if err != nil {
			return count, fmt.Errorf("failed to decode attachment %s/%s: %w", att.ID, att.AttachmentName, err)
		}
		if err := h.PutAttachment(ctx, att.ID, att.AttachmentName, contentTypes[att.ID][att.AttachmentName], data); err != nil {
			return count, fmt.Errorf("failed to import attachment %s/%s: %w", att.ID, att.AttachmentName, err)
		}
		count++
	}

	s.logger.Info().Int("objects", count).Msg("archive imported")
	return count, nil
}
