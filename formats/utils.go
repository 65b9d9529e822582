package formats

import "strings"

// isBlankLine checks if a line contains only whitespace
func isBlankLine(line string) bool {
	return strings.TrimSpace(line) == ""
}

// splitTitle treats a first line followed by a blank line as the title
func splitTitle(lines []string) (title, content string, ok bool) {
	if len(lines) < 2 || !isBlankLine(lines[1]) {
		return "", "", false
	}
	title = strings.TrimSpace(lines[0])

	contentStart := 2
	for contentStart < len(lines) && isBlankLine(lines[contentStart]) {
		contentStart++
	}
	if contentStart < len(lines) {
		content = strings.TrimSpace(strings.Join(lines[contentStart:], "\n"))
	}
	return title, content, true
}
