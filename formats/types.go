// Package formats renders task documents as text files and reads them back.
// The title and description become the body of the file and every other
// field goes to a metadata section.
package formats

import (
	"fmt"
	"sort"
	"strings"

	"github.com/arthur-debert/taskman/types"
)

// Fields stored in the body rather than the metadata section
const (
	TitleField       = "title"
	DescriptionField = "description"
)

// DocumentFormat defines how documents are serialized and deserialized
type DocumentFormat struct {
	// Name is the format identifier (alphanumeric, dashes, underscores, lowercase)
	Name string

	// Extension is the file extension including the dot (e.g., ".txt", ".md")
	Extension string

	// Serialize converts title, content and metadata into the formatted document string
	Serialize func(title, content string, metadata map[string]any) string

	// Deserialize extracts title, content and metadata from the formatted document string.
	// Returns empty title if none found, error if both title and content are empty
	Deserialize func(document string) (title string, content string, metadata map[string]any, err error)
}

// Render serializes doc with f
func (f *DocumentFormat) Render(doc types.Document) string {
	metadata := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == TitleField || k == DescriptionField || k == types.AttachmentsKey {
			continue
		}
		metadata[k] = v
	}
	return f.Serialize(doc.String(TitleField), doc.String(DescriptionField), metadata)
}

// Parse deserializes a document written with f
func (f *DocumentFormat) Parse(text string) (types.Document, error) {
	title, content, metadata, err := f.Deserialize(text)
	if err != nil {
		return nil, types.ValidationError("Cannot read document", err.Error())
	}
	doc := make(types.Document, len(metadata)+2)
	for k, v := range metadata {
		doc[k] = v
	}
	if title != "" {
		doc[TitleField] = title
	}
	if content != "" {
		doc[DescriptionField] = content
	}
	return doc, nil
}

// registry holds all available document formats
var registry = make(map[string]*DocumentFormat)

// Register adds a new document format to the registry
func Register(format *DocumentFormat) error {
	if !isValidFormatName(format.Name) {
		return fmt.Errorf("invalid format name %q: must be lowercase alphanumeric with dashes and underscores only", format.Name)
	}

	if !strings.HasPrefix(format.Extension, ".") {
		format.Extension = "." + format.Extension
	}

	if _, exists := registry[format.Name]; exists {
		return fmt.Errorf("format %q already registered", format.Name)
	}

	registry[format.Name] = format
	return nil
}

// Get returns a document format by name
func Get(name string) (*DocumentFormat, error) {
	format, exists := registry[name]
	if !exists {
		return nil, types.ConfigError(fmt.Sprintf("unknown format %q (available: %s)", name, strings.Join(List(), ", ")))
	}
	return format, nil
}

// ForExtension returns the format registered for a file extension
func ForExtension(ext string) (*DocumentFormat, bool) {
	for _, name := range List() {
		if registry[name].Extension == ext {
			return registry[name], true
		}
	}
	return nil, false
}

// List returns all registered format names, sorted
func List() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// isValidFormatName checks if a format name is valid
func isValidFormatName(name string) bool {
	if name == "" {
		return false
	}

	for _, r := range name {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') && r != '-' && r != '_' {
			return false
		}
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
