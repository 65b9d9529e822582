package schema

import (
	"github.com/arthur-debert/taskman/internal/folding"
	"github.com/arthur-debert/taskman/taskman/partialdate"
)

// Names registered by Default
const (
	CastDate             = "dateType"
	CastFoldedText       = "foldedText"
	MatchTranslatedState = "translatedStateMatch"
)

// Default returns the key schema used for task documents: accent and case
// insensitive title and description, partial-date start and stop, and a
// translated_state key matching the localized state label.
func Default(tr Translator) *KeySchema {
	return &KeySchema{
		CastLookup: map[string]CastFunc{
			CastDate:       partialdate.Cast,
			CastFoldedText: folding.Value,
		},
		MatchLookup: map[string]Matcher{
			MatchTranslatedState: TranslatedMatcher(tr),
		},
		KeySet: map[string]Key{
			"title": {
				ReadFrom: "title",
				Cast:     folding.Value,
			},
			"description": {
				ReadFrom: "description",
				Cast:     folding.Value,
			},
			"start": {
				ReadFrom: "start",
				CastTo:   CastDate,
			},
			"stop": {
				ReadFrom: "stop",
				CastTo:   CastDate,
			},
			"translated_state": {
				ReadFrom:   "state",
				EqualMatch: MatchTranslatedState,
			},
		},
	}
}
