package migration

import (
	"fmt"
	"time"

	"github.com/arthur-debert/taskman/internal/validation"
)

// ValidateDocuments checks every document with the same rules applied when
// a document is saved. It never modifies anything.
type ValidateDocuments struct {
	DateFields []string
}

// Description returns a human-readable description of the command
func (v *ValidateDocuments) Description() string {
	return "Validate all documents"
}

// Validate reports what will be checked
func (v *ValidateDocuments) Validate(ctx *Context) []Message {
	return []Message{{
		Level: LevelInfo,
		Text:  fmt.Sprintf("Will validate %d documents", len(ctx.Documents)),
		Details: map[string]any{
			"date_fields": v.DateFields,
		},
	}}
}

// Execute performs the validation
func (v *ValidateDocuments) Execute(ctx *Context) *Result {
	result := newResult(ctx)
	started := time.Now()
	result.Messages = append(result.Messages, v.Validate(ctx)...)

	invalid := 0
	for _, doc := range ctx.Documents {
		if err := validation.Document(doc, v.DateFields...); err != nil {
			invalid++
			result.Messages = append(result.Messages, Message{
				Level:   LevelError,
				Text:    fmt.Sprintf("Document %s: %v", doc.ID(), err),
				Details: map[string]any{"document_id": doc.ID()},
			})
		}
	}
	result.Stats.Duration = time.Since(started)

	if invalid > 0 {
		result.Success = false
		result.Code = CodeValidationError
		result.Messages = append(result.Messages, Message{
			Level: LevelError,
			Text:  fmt.Sprintf("%d of %d documents are invalid", invalid, len(ctx.Documents)),
		})
		return result
	}
	result.Messages = append(result.Messages, Message{
		Level: LevelInfo,
		Text:  fmt.Sprintf("All %d documents are valid", len(ctx.Documents)),
	})
	return result
}
