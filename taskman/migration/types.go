// Package migration rewrites fields across the documents of a storage:
// rename, remove, add, transform and validate. Commands work on an
// in-memory copy of the documents; Apply writes the modified ones back.
package migration

import (
	"time"

	"github.com/arthur-debert/taskman/types"
)

// MessageLevel represents the severity of a message
type MessageLevel int

const (
	LevelDebug MessageLevel = iota
	LevelInfo
	LevelWarning
	LevelError
)

// String returns the level name
func (l MessageLevel) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	default:
		return "error"
	}
}

// Message represents a single output message from a migration
type Message struct {
	Level   MessageLevel
	Text    string
	Details map[string]any // Optional structured data
}

// Result encapsulates the outcome of a migration operation
type Result struct {
	Success      bool
	Code         int // 0 = success, >0 = specific error codes
	Messages     []Message
	ModifiedDocs []string // ids of modified documents, sorted
	Stats        Stats
}

// Stats provides migration statistics
type Stats struct {
	TotalDocs    int
	ModifiedDocs int
	SkippedDocs  int
	Duration     time.Duration
}

// Context holds the documents a command works on
type Context struct {
	Documents []types.Document
	DryRun    bool
}

// Options configures migration behavior
type Options struct {
	DryRun bool
	// DocumentType restricts the migration to one document type; empty
	// means every document of the storage
	DocumentType string
}

// Error codes
const (
	CodeSuccess = iota
	CodeValidationError
	CodeExecutionError
	CodePartialFailure
)

// Command is one migration step
type Command interface {
	Description() string
	Validate(ctx *Context) []Message
	Execute(ctx *Context) *Result
}

func newResult(ctx *Context) *Result {
	return &Result{
		Success:  true,
		Code:     CodeSuccess,
		Messages: []Message{},
		Stats:    Stats{TotalDocs: len(ctx.Documents)},
	}
}

func hasError(messages []Message) bool {
	for _, msg := range messages {
		if msg.Level == LevelError {
			return true
		}
	}
	return false
}

// validated runs cmd validation into result and reports whether execution
// may proceed
func validated(cmd Command, ctx *Context, result *Result) bool {
	messages := cmd.Validate(ctx)
	result.Messages = append(result.Messages, messages...)
	if hasError(messages) {
		result.Success = false
		result.Code = CodeValidationError
		return false
	}
	return true
}

// finish records the modified ids, the duration and the dry run notice
func finish(ctx *Context, result *Result, modified []string, started time.Time) {
	result.ModifiedDocs = modified
	result.Stats.ModifiedDocs = len(modified)
	result.Stats.Duration = time.Since(started)
	if ctx.DryRun {
		result.Messages = append(result.Messages, Message{
			Level: LevelInfo,
			Text:  "(DRY RUN - no changes applied)",
		})
	}
}

// protectedField reports whether the storage layer owns the field
func protectedField(name string) bool {
	return name == types.IDKey || name == types.AttachmentsKey || name == types.TypeKey
}

func firstIDs(ids []string) []string {
	return ids[:min(5, len(ids))]
}
