package query

import (
	"strconv"
	"strings"

	"github.com/arthur-debert/taskman/taskman/partialdate"
	"github.com/arthur-debert/taskman/types"
)

// IsGrammar reports whether user input is already written in the query
// grammar. Only the surrounding parentheses are checked.
func IsGrammar(input string) bool {
	trimmed := strings.TrimSpace(input)
	return len(trimmed) >= 2 && trimmed[0] == '(' && trimmed[len(trimmed)-1] == ')'
}

// GrammarString prefixes a grammar query with the document type filter. The
// input is parenthesized so the filter applies to every OR branch.
func GrammarString(metadataType, input string) string {
	query := "(" + types.TypeKey + ": " + strconv.Quote(metadataType) + ")"
	if trimmed := strings.TrimSpace(input); trimmed != "" {
		query += " AND (" + trimmed + ")"
	}
	return query
}

// Grammar parses grammar input restricted to documents of metadataType
func Grammar(metadataType, input string) (Predicate, error) {
	return Parse(GrammarString(metadataType, input))
}

// Smart turns free text into a query over documents of metadataType: the
// text is searched in title and description, compared with the translated
// state, and, when it reads as a date, matched against the start/stop range.
// Empty input only filters on the type.
func Smart(metadataType, input string) Predicate {
	typeFilter := Eq(types.TypeKey, metadataType)

	text := strings.TrimSpace(input)
	if text == "" {
		return typeFilter
	}

	content := []Predicate{
		Eq("title", Wildcard+text+Wildcard),
		Eq("description", Wildcard+text+Wildcard),
		Eq("translated_state", text),
	}
	if date, err := partialdate.Parse(text); err == nil {
		content = append(content, AllOf(
			Cmp("start", OpLessEqual, date),
			Cmp("stop", OpGreaterEqual, date),
		))
	}

	return AllOf(typeFilter, AnyOf(content...))
}

// Build dispatches user input to the grammar parser or the smart builder
func Build(metadataType, input string) (Predicate, error) {
	if IsGrammar(input) {
		return Grammar(metadataType, input)
	}
	return Smart(metadataType, input), nil
}
