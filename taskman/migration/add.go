package migration

import (
	"fmt"
	"strings"
	"time"

	"github.com/arthur-debert/taskman/internal/validation"
)

// AddField sets a field to a default value on every document lacking it.
// Documents that already have the field are skipped.
type AddField struct {
	FieldName    string
	DefaultValue any
}

// Description returns a human-readable description of the command
func (a *AddField) Description() string {
	return fmt.Sprintf("Add field '%s' with default value %v", a.FieldName, a.DefaultValue)
}

// Validate checks if the add can be executed
func (a *AddField) Validate(ctx *Context) []Message {
	var messages []Message

	if strings.TrimSpace(a.FieldName) == "" {
		return append(messages, Message{Level: LevelError, Text: "Field name cannot be empty"})
	}
	if protectedField(a.FieldName) || validation.IsReservedFieldName(a.FieldName) {
		messages = append(messages, Message{
			Level: LevelError,
			Text:  fmt.Sprintf("Field '%s' is reserved and cannot be added", a.FieldName),
		})
	}
	if err := validation.ValidateValue(a.DefaultValue, a.FieldName); err != nil {
		messages = append(messages, Message{
			Level: LevelError,
			Text:  fmt.Sprintf("Invalid default value: %v", err),
		})
	}

	var existing []string
	for _, doc := range ctx.Documents {
		if _, exists := doc[a.FieldName]; exists {
			existing = append(existing, doc.ID())
		}
	}
	if len(existing) > 0 {
		messages = append(messages, Message{
			Level: LevelWarning,
			Text:  fmt.Sprintf("Field '%s' already exists in %d documents, they will be skipped", a.FieldName, len(existing)),
			Details: map[string]any{
				"document_ids": firstIDs(existing),
				"total":        len(existing),
			},
		})
	}
	return messages
}

// Execute performs the add operation
func (a *AddField) Execute(ctx *Context) *Result {
	result := newResult(ctx)
	started := time.Now()
	if !validated(a, ctx, result) {
		return result
	}

	var modified []string
	for _, doc := range ctx.Documents {
		if _, exists := doc[a.FieldName]; exists {
			result.Stats.SkippedDocs++
			continue
		}
		if !ctx.DryRun {
			doc[a.FieldName] = a.DefaultValue
		}
		modified = append(modified, doc.ID())
	}

	if len(modified) > 0 {
		result.Messages = append(result.Messages, Message{
			Level: LevelInfo,
			Text:  fmt.Sprintf("Added field '%s' to %d documents", a.FieldName, len(modified)),
		})
	}
	finish(ctx, result, modified, started)
	return result
}
