package formats

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PlainText format implementation
// Serialization:
//   - If metadata exists: metadata section, separator (---), blank line, title, blank line, content
//   - If no metadata: title on first line, blank line, then content
//
// Deserialization: parses metadata section if present, then title/content
var PlainText = &DocumentFormat{
	Name:      "plaintext",
	Extension: ".txt",
	Serialize: func(title, content string, metadata map[string]any) string {
		var result strings.Builder

		if len(metadata) > 0 {
			for _, key := range sortedKeys(metadata) {
				result.WriteString(key)
				result.WriteString(": ")
				result.WriteString(formatValue(metadata[key]))
				result.WriteString("\n")
			}
			result.WriteString("---\n\n")
		}

		if title != "" {
			result.WriteString(title)
			result.WriteString("\n\n")
		}

		result.WriteString(content)

		return result.String()
	},
	Deserialize: func(document string) (string, string, map[string]any, error) {
		if strings.TrimSpace(document) == "" {
			return "", "", nil, fmt.Errorf("empty document: both title and content are empty")
		}

		lines := strings.Split(document, "\n")
		var metadata map[string]any

		if hasMetadataSection(lines) {
			var contentStartIndex int
			metadata, contentStartIndex = parseMetadataSection(lines)
			lines = lines[contentStartIndex:]
		}

		if title, content, ok := splitTitle(lines); ok {
			if title != "" || content != "" {
				return title, content, metadata, nil
			}
			return "", "", nil, fmt.Errorf("empty document: both title and content are empty")
		}

		// No title pattern found, entire document is content
		return "", strings.TrimSpace(strings.Join(lines, "\n")), metadata, nil
	},
}

func init() {
	if err := Register(PlainText); err != nil {
		panic(fmt.Sprintf("failed to register PlainText format: %v", err))
	}
}

// hasMetadataSection checks if the document starts with a metadata section
func hasMetadataSection(lines []string) bool {
	if len(lines) < 2 || !strings.Contains(lines[0], ": ") {
		return false
	}

	// separator within the first 20 lines
	for i := 1; i < len(lines) && i < 20; i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			return true
		}
	}
	return false
}

// parseMetadataSection parses the key: value lines up to the separator and
// returns them with the index where content starts
func parseMetadataSection(lines []string) (map[string]any, int) {
	metadata := make(map[string]any)
	separatorIndex := 0
	for i, line := range lines {
		if strings.TrimSpace(line) == "---" {
			separatorIndex = i
			break
		}
		parts := strings.SplitN(line, ": ", 2)
		if len(parts) == 2 {
			metadata[strings.TrimSpace(parts[0])] = parseValue(strings.TrimSpace(parts[1]))
		}
	}

	contentStart := separatorIndex + 1
	for contentStart < len(lines) && isBlankLine(lines[contentStart]) {
		contentStart++
	}
	return metadata, contentStart
}

// formatValue converts a value to string representation
func formatValue(value any) string {
	switch v := value.(type) {
	case time.Time:
		return v.Format(time.RFC3339)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// parseValue keeps dates as text, since their precision matters to
// queries, and only converts booleans and numbers
func parseValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
