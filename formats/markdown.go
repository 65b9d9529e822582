package formats

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// markdownTitleRegex matches markdown h1 headers (must be at very start, no leading space)
var markdownTitleRegex = regexp.MustCompile(`^#\s+(.+?)[\s]*$`)

// Markdown format implementation
// Serialization: YAML front matter, then # Title followed by blank line, then content
// Deserialization: front matter if present, title from # Title pattern at first line
var Markdown = &DocumentFormat{
	Name:      "markdown",
	Extension: ".md",
	Serialize: func(title, content string, metadata map[string]any) string {
		var result strings.Builder

		if len(metadata) > 0 {
			data, err := yaml.Marshal(metadata)
			if err == nil {
				result.WriteString("---\n")
				result.Write(data)
				result.WriteString("---\n\n")
			}
		}

		if title != "" {
			result.WriteString("# ")
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

		metadata, body, err := splitFrontMatter(document)
		if err != nil {
			return "", "", nil, err
		}

		lines := strings.Split(strings.TrimLeft(body, "\n"), "\n")
		if matches := markdownTitleRegex.FindStringSubmatch(lines[0]); len(matches) > 1 {
			title := strings.TrimSpace(matches[1])
			content := ""
			if len(lines) > 1 {
				content = strings.TrimSpace(strings.Join(lines[1:], "\n"))
			}
			return title, content, metadata, nil
		}

		content := strings.TrimSpace(strings.Join(lines, "\n"))
		if content == "" && len(metadata) == 0 {
			return "", "", nil, fmt.Errorf("empty document: both title and content are empty")
		}
		return "", content, metadata, nil
	},
}

func init() {
	if err := Register(Markdown); err != nil {
		panic(fmt.Sprintf("failed to register Markdown format: %v", err))
	}
}

// splitFrontMatter separates a leading "---" delimited YAML block
func splitFrontMatter(document string) (map[string]any, string, error) {
	if !strings.HasPrefix(document, "---\n") {
		return nil, document, nil
	}
	rest := document[len("---\n"):]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, "", fmt.Errorf("front matter is not closed")
	}

	var metadata map[string]any
	if err := yaml.Unmarshal([]byte(rest[:end]), &metadata); err != nil {
		return nil, "", fmt.Errorf("invalid front matter: %w", err)
	}
	for k, v := range metadata {
		if t, ok := v.(time.Time); ok {
			metadata[k] = formatTime(t)
		}
	}

	body := rest[end+len("\n---"):]
	body = strings.TrimPrefix(body, "\n")
	return metadata, body, nil
}

// formatTime writes dates without a clock as plain dates
func formatTime(t time.Time) string {
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}
