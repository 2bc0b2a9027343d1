package storage

import (
	"fmt"
	"slices"
	"strings"
)

// Scope is an immutable set of scope tokens (RFC 6749 Section 3.3).
// The zero value is the empty scope.
type Scope struct {
	tokens []string // sorted, unique
}

// ParseScope parses a space-delimited scope string.
// Tokens must consist of %x21 / %x23-5B / %x5D-7E characters.
func ParseScope(s string) (Scope, error) {
	fields := strings.Fields(s)
	for _, token := range fields {
		if err := validateScopeToken(token); err != nil {
			return Scope{}, err
		}
	}
	return newScope(fields), nil
}

// MustParseScope is like ParseScope but panics on invalid input.
// Intended for static configuration and tests.
func MustParseScope(s string) Scope {
	scope, err := ParseScope(s)
	if err != nil {
		panic(err)
	}
	return scope
}

func newScope(tokens []string) Scope {
	if len(tokens) == 0 {
		return Scope{}
	}
	sorted := slices.Clone(tokens)
	slices.Sort(sorted)
	return Scope{tokens: slices.Compact(sorted)}
}

func validateScopeToken(token string) error {
	for i := 0; i < len(token); i++ {
		c := token[i]
		if c < 0x21 || c > 0x7e || c == '"' || c == '\\' {
			return fmt.Errorf("%w: character %q not allowed in %q", ErrInvalidScope, c, token)
		}
	}
	return nil
}

// String returns the scope as a space-delimited string in sorted order
func (s Scope) String() string {
	return strings.Join(s.tokens, " ")
}

// Tokens returns a copy of the individual scope tokens
func (s Scope) Tokens() []string {
	return slices.Clone(s.tokens)
}

// Empty reports whether the scope contains no tokens
func (s Scope) Empty() bool {
	return len(s.tokens) == 0
}

// Contains reports whether token is part of the scope
func (s Scope) Contains(token string) bool {
	_, found := slices.BinarySearch(s.tokens, token)
	return found
}

// SubsetOf reports whether every token of s is also part of other
func (s Scope) SubsetOf(other Scope) bool {
	for _, token := range s.tokens {
		if !other.Contains(token) {
			return false
		}
	}
	return true
}

// Equal reports whether both scopes contain the same tokens
func (s Scope) Equal(other Scope) bool {
	return slices.Equal(s.tokens, other.tokens)
}

// MarshalText implements encoding.TextMarshaler
func (s Scope) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Scope) UnmarshalText(text []byte) error {
	parsed, err := ParseScope(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
