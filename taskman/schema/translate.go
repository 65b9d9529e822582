package schema

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/taskman/internal/folding"
)

// Translator maps stored values (state names, ...) to the user's language
type Translator interface {
	Translate(key string) string
}

// MapTranslator is a Translator backed by a static catalog. Unknown keys
// translate to themselves.
type MapTranslator map[string]string

// Translate implements Translator
func (m MapTranslator) Translate(key string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return key
}

// IdentityTranslator leaves every value untranslated
var IdentityTranslator Translator = MapTranslator(nil)

// LoadTranslations reads a flat YAML catalog of key: translation pairs
func LoadTranslations(r io.Reader) (MapTranslator, error) {
	catalog := MapTranslator{}
	if err := yaml.NewDecoder(r).Decode(&catalog); err != nil {
		if err == io.EOF {
			return catalog, nil
		}
		return nil, fmt.Errorf("failed to parse translation catalog: %w", err)
	}
	return catalog, nil
}

// TranslatedMatcher compares the translation of the stored value with the
// query value, ignoring accents and case.
func TranslatedMatcher(tr Translator) Matcher {
	if tr == nil {
		tr = IdentityTranslator
	}
	return MatcherFunc(func(ctx context.Context, docValue, queryValue any) (bool, error) {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		if IsAbsent(docValue) || IsAbsent(queryValue) {
			return false, nil
		}
		stored := fmt.Sprint(docValue)
		return folding.Equal(tr.Translate(stored), fmt.Sprint(queryValue)), nil
	})
}
