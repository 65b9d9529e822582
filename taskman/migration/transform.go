package migration

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// TransformField rewrites the values of a field with a registered transformer
type TransformField struct {
	FieldName       string
	TransformerName string
}

// Description returns a human-readable description of the command
func (t *TransformField) Description() string {
	return fmt.Sprintf("Transform field '%s' using '%s' transformer", t.FieldName, t.TransformerName)
}

// Validate checks if the transform can be executed
func (t *TransformField) Validate(ctx *Context) []Message {
	var messages []Message

	if strings.TrimSpace(t.FieldName) == "" {
		return append(messages, Message{Level: LevelError, Text: "Field name cannot be empty"})
	}
	if protectedField(t.FieldName) {
		return append(messages, Message{
			Level: LevelError,
			Text:  fmt.Sprintf("Field '%s' is reserved and cannot be transformed", t.FieldName),
		})
	}

	transformer, exists := TransformerRegistry[t.TransformerName]
	if !exists {
		return append(messages, Message{
			Level: LevelError,
			Text:  fmt.Sprintf("Unknown transformer '%s'", t.TransformerName),
			Details: map[string]any{
				"available_transformers": TransformerNames(),
			},
		})
	}

	count := 0
	failures := 0
	var samples []string
	for _, doc := range ctx.Documents {
		val, exists := doc[t.FieldName]
		if !exists {
			continue
		}
		count++
		if _, err := transformer(val); err != nil {
			failures++
			if len(samples) < 3 {
				samples = append(samples, fmt.Sprintf("doc %s: %v", doc.ID(), err))
			}
		}
	}

	if count == 0 {
		return append(messages, Message{
			Level: LevelWarning,
			Text:  fmt.Sprintf("Field '%s' not found in any document", t.FieldName),
		})
	}
	messages = append(messages, Message{
		Level: LevelInfo,
		Text:  fmt.Sprintf("Found field '%s' in %d documents", t.FieldName, count),
	})
	if failures > 0 {
		messages = append(messages, Message{
			Level: LevelWarning,
			Text:  fmt.Sprintf("Transformation will fail for %d values", failures),
			Details: map[string]any{
				"sample_errors": samples,
				"total_errors":  failures,
			},
		})
	}
	return messages
}

// Execute performs the transform operation. Values the transformer rejects
// are left untouched and make the result a partial failure.
func (t *TransformField) Execute(ctx *Context) *Result {
	result := newResult(ctx)
	started := time.Now()
	if !validated(t, ctx, result) {
		return result
	}
	transformer := TransformerRegistry[t.TransformerName]

	var modified []string
	var failures []map[string]any
	for _, doc := range ctx.Documents {
		val, exists := doc[t.FieldName]
		if !exists {
			continue
		}
		newVal, err := transformer(val)
		if err != nil {
			failures = append(failures, map[string]any{
				"document_id": doc.ID(),
				"old_value":   val,
				"error":       err.Error(),
			})
			continue
		}
		if reflect.DeepEqual(val, newVal) {
			result.Stats.SkippedDocs++
			continue
		}
		if !ctx.DryRun {
			doc[t.FieldName] = newVal
		}
		modified = append(modified, doc.ID())
	}

	if len(failures) > 0 {
		result.Success = false
		result.Code = CodePartialFailure
		result.Messages = append(result.Messages, Message{
			Level: LevelError,
			Text:  fmt.Sprintf("Failed to transform %d values", len(failures)),
			Details: map[string]any{
				"errors": failures[:min(5, len(failures))],
			},
		})
	}
	if len(modified) > 0 {
		result.Messages = append(result.Messages, Message{
			Level: LevelInfo,
			Text: fmt.Sprintf("Transformed field '%s' in %d documents using '%s' transformer",
				t.FieldName, len(modified), t.TransformerName),
		})
	}
	finish(ctx, result, modified, started)
	return result
}
