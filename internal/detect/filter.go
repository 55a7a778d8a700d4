package detect

import (
	"unicode"
	"unicode/utf8"
)

// ShortTokenLength is the length below which IgnoreShort rejects a token.
const ShortTokenLength = 4

// TokenFilter decides which tokens of a confirmed name may propagate as
// name-only tokens. It never affects forced outcomes.
type TokenFilter struct {
	IgnoreShort        bool `json:"ignore_short" yaml:"ignore_short"`
	OnlyAllLetters     bool `json:"only_all_letters" yaml:"only_all_letters"`
	OnlyInitialCapital bool `json:"only_initial_capital" yaml:"only_initial_capital"`
}

// Passes reports whether token satisfies every enabled rule.
func (f TokenFilter) Passes(token string) bool {
	if token == "" {
		return false
	}
	if f.IgnoreShort && utf8.RuneCountInString(token) < ShortTokenLength {
		return false
	}
	if f.OnlyAllLetters {
		for _, r := range token {
			if !unicode.IsLetter(r) {
				return false
			}
		}
	}
	if f.OnlyInitialCapital {
		r, _ := utf8.DecodeRuneInString(token)
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}
