package migration

import (
	"fmt"
	"strings"
	"time"

	"github.com/arthur-debert/taskman/internal/validation"
)

// RenameField renames a field across all documents
type RenameField struct {
	OldName string
	NewName string
}

// Description returns a human-readable description of the command
func (r *RenameField) Description() string {
	return fmt.Sprintf("Rename field '%s' to '%s'", r.OldName, r.NewName)
}

// Validate checks if the rename can be executed
func (r *RenameField) Validate(ctx *Context) []Message {
	var messages []Message

	if strings.TrimSpace(r.OldName) == "" {
		messages = append(messages, Message{Level: LevelError, Text: "Old field name cannot be empty"})
	}
	if strings.TrimSpace(r.NewName) == "" {
		messages = append(messages, Message{Level: LevelError, Text: "New field name cannot be empty"})
	}
	if r.OldName == r.NewName {
		messages = append(messages, Message{Level: LevelError, Text: "Old and new field names are the same"})
	}
	for _, name := range []string{r.OldName, r.NewName} {
		if protectedField(name) || validation.IsReservedFieldName(name) {
			messages = append(messages, Message{
				Level: LevelError,
				Text:  fmt.Sprintf("Field '%s' is reserved and cannot be renamed", name),
			})
		}
	}
	if hasError(messages) {
		return messages
	}

	count := 0
	var conflicts []string
	for _, doc := range ctx.Documents {
		if _, exists := doc[r.OldName]; exists {
			count++
			if _, taken := doc[r.NewName]; taken {
				conflicts = append(conflicts, doc.ID())
			}
		}
	}

	if count == 0 {
		return append(messages, Message{
			Level: LevelWarning,
			Text:  fmt.Sprintf("Field '%s' not found in any document", r.OldName),
		})
	}
	messages = append(messages, Message{
		Level: LevelInfo,
		Text:  fmt.Sprintf("Found field '%s' in %d documents", r.OldName, count),
	})

	if len(conflicts) > 0 {
		messages = append(messages, Message{
			Level: LevelError,
			Text:  fmt.Sprintf("Field '%s' already exists in %d documents", r.NewName, len(conflicts)),
			Details: map[string]any{
				"document_ids": firstIDs(conflicts),
				"total":        len(conflicts),
			},
		})
	}
	return messages
}

// Execute performs the rename operation
func (r *RenameField) Execute(ctx *Context) *Result {
	result := newResult(ctx)
	started := time.Now()
	if !validated(r, ctx, result) {
		return result
	}

	var modified []string
	for _, doc := range ctx.Documents {
		val, exists := doc[r.OldName]
		if !exists {
			continue
		}
		if !ctx.DryRun {
			doc[r.NewName] = val
			delete(doc, r.OldName)
		}
		modified = append(modified, doc.ID())
	}

	if len(modified) > 0 {
		result.Messages = append(result.Messages, Message{
			Level: LevelInfo,
			Text:  fmt.Sprintf("Renamed field '%s' to '%s' in %d documents", r.OldName, r.NewName, len(modified)),
		})
	}
	finish(ctx, result, modified, started)
	return result
}
