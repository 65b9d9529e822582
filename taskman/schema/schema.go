// Package schema implements the key schema used by queries: it maps logical
// query keys onto document fields, optionally casting the raw values and
// overriding equality with named matchers.
//
// A key that is not declared in the KeySet reads the document field of the
// same name without any cast.
package schema

import (
	"context"
	"fmt"
	"sort"

	"github.com/arthur-debert/taskman/types"
)

type absent struct{}

func (absent) String() string { return "<absent>" }

// Absent is the value of a key the document does not carry, or whose cast
// could not produce a value. It is never equal to anything and has no order.
var Absent any = absent{}

// IsAbsent reports whether v is the Absent sentinel
func IsAbsent(v any) bool {
	_, ok := v.(absent)
	return ok
}

// CastFunc turns a raw value into a comparable one. It must be pure and must
// accept its own output. Returning nil marks the value as absent.
type CastFunc func(v any) any

// Matcher decides equality for keys that need more than native equality.
// Implementations may block (lookups, translations) and honour ctx.
type Matcher interface {
	Equal(ctx context.Context, docValue, queryValue any) (bool, error)
}

// MatcherFunc adapts a function to the Matcher interface
type MatcherFunc func(ctx context.Context, docValue, queryValue any) (bool, error)

// Equal calls f
func (f MatcherFunc) Equal(ctx context.Context, docValue, queryValue any) (bool, error) {
	return f(ctx, docValue, queryValue)
}

// Key describes how a logical key is read from a document
type Key struct {
	// ReadFrom is the document field; defaults to the key name
	ReadFrom string
	// CastTo names a cast registered in CastLookup
	CastTo string
	// Cast is a literal cast and takes precedence over CastTo
	Cast CastFunc
	// EqualMatch names a matcher registered in MatchLookup
	EqualMatch string
}

// KeySchema is the static key table attached to a storage handle
type KeySchema struct {
	CastLookup  map[string]CastFunc
	MatchLookup map[string]Matcher
	KeySet      map[string]Key
}

// Validate checks that every cast and matcher referenced by the key set is
// registered
func (s *KeySchema) Validate() error {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.KeySet))
	for name := range s.KeySet {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		k := s.KeySet[name]
		if k.Cast == nil && k.CastTo != "" {
			if _, ok := s.CastLookup[k.CastTo]; !ok {
				return types.ConfigError(fmt.Sprintf("key %q uses unknown cast %q", name, k.CastTo))
			}
		}
		if k.EqualMatch != "" {
			if _, ok := s.MatchLookup[k.EqualMatch]; !ok {
				return types.ConfigError(fmt.Sprintf("key %q uses unknown matcher %q", name, k.EqualMatch))
			}
		}
	}
	return nil
}

// Field returns the document field a key reads from
func (s *KeySchema) Field(key string) string {
	if s != nil {
		if k, ok := s.KeySet[key]; ok && k.ReadFrom != "" {
			return k.ReadFrom
		}
	}
	return key
}

// Resolve reads key from doc and applies its cast. Missing fields, nil values
// and failed casts all resolve to Absent.
func (s *KeySchema) Resolve(doc types.Document, key string) (any, error) {
	raw, ok := doc[s.Field(key)]
	if !ok || raw == nil {
		return Absent, nil
	}
	return s.CastValue(key, raw)
}

// CastValue applies the cast of key to an arbitrary value. Query values go
// through the same cast as document values so both sides compare alike.
// Slices are cast element by element.
func (s *KeySchema) CastValue(key string, raw any) (any, error) {
	if raw == nil || IsAbsent(raw) {
		return Absent, nil
	}
	cast, err := s.castFor(key)
	if err != nil {
		return nil, err
	}
	if cast == nil {
		return raw, nil
	}
	if list, ok := raw.([]any); ok {
		out := make([]any, len(list))
		for i, item := range list {
			out[i] = applyCast(cast, item)
		}
		return out, nil
	}
	return applyCast(cast, raw), nil
}

// Matcher returns the custom equality for key, if the key declares one
func (s *KeySchema) Matcher(key string) (Matcher, bool, error) {
	if s == nil {
		return nil, false, nil
	}
	k, ok := s.KeySet[key]
	if !ok || k.EqualMatch == "" {
		return nil, false, nil
	}
	m, ok := s.MatchLookup[k.EqualMatch]
	if !ok {
		return nil, false, types.ConfigError(fmt.Sprintf("key %q uses unknown matcher %q", key, k.EqualMatch))
	}
	return m, true, nil
}

func (s *KeySchema) castFor(key string) (CastFunc, error) {
	if s == nil {
		return nil, nil
	}
	k, ok := s.KeySet[key]
	if !ok {
		return nil, nil
	}
	if k.Cast != nil {
		return k.Cast, nil
	}
	if k.CastTo == "" {
		return nil, nil
	}
	cast, ok := s.CastLookup[k.CastTo]
	if !ok {
		return nil, types.ConfigError(fmt.Sprintf("key %q uses unknown cast %q", key, k.CastTo))
	}
	return cast, nil
}

func applyCast(cast CastFunc, v any) any {
	if v == nil {
		return Absent
	}
	out := cast(v)
	if out == nil {
		return Absent
	}
	return out
}
