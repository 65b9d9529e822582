package migration

import (
	"fmt"
	"strings"
	"time"
)

// RemoveField deletes a field from all documents
type RemoveField struct {
	FieldName string
}

// Description returns a human-readable description of the command
func (r *RemoveField) Description() string {
	return fmt.Sprintf("Remove field '%s'", r.FieldName)
}

// Validate checks if the removal can be executed
func (r *RemoveField) Validate(ctx *Context) []Message {
	if strings.TrimSpace(r.FieldName) == "" {
		return []Message{{Level: LevelError, Text: "Field name cannot be empty"}}
	}
	if protectedField(r.FieldName) {
		return []Message{{
			Level: LevelError,
			Text:  fmt.Sprintf("Field '%s' is reserved and cannot be removed", r.FieldName),
		}}
	}

	count := 0
	for _, doc := range ctx.Documents {
		if _, exists := doc[r.FieldName]; exists {
			count++
		}
	}
	if count == 0 {
		return []Message{{
			Level: LevelWarning,
			Text:  fmt.Sprintf("Field '%s' not found in any document", r.FieldName),
		}}
	}
	return []Message{{
		Level: LevelInfo,
		Text:  fmt.Sprintf("Found field '%s' in %d documents", r.FieldName, count),
	}}
}

// Execute performs the removal
func (r *RemoveField) Execute(ctx *Context) *Result {
	result := newResult(ctx)
	started := time.Now()
	if !validated(r, ctx, result) {
		return result
	}

	var modified []string
	for _, doc := range ctx.Documents {
		if _, exists := doc[r.FieldName]; !exists {
			continue
		}
		if !ctx.DryRun {
			delete(doc, r.FieldName)
		}
		modified = append(modified, doc.ID())
	}

	if len(modified) > 0 {
		result.Messages = append(result.Messages, Message{
			Level: LevelInfo,
			Text:  fmt.Sprintf("Removed field '%s' from %d documents", r.FieldName, len(modified)),
		})
	}
	finish(ctx, result, modified, started)
	return result
}
