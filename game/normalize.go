/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Key is the canonical comparison form of a submitted answer.
type Key string

// Blank is the key every empty or whitespace-only answer normalizes to.
// Blank keys are never grouped together; see Group.
const Blank Key = ""

// Normalizer turns raw answer text into a Key. Implementations must be
// pure: the same input always yields the same key.
type Normalizer func(raw string) Key

// Normalize folds case, applies NFKC, trims the answer and collapses
// internal whitespace runs to a single space.
func Normalize(raw string) Key {
	// cases.Caser holds state, so one is built per call.
	folded := cases.Fold().String(norm.NFKC.String(raw))

	return Key(strings.Join(strings.Fields(folded), " "))
}

// NormalizePlurals is Normalize followed by light plural folding on every
// word, so "apples" and "apple" share a key.
func NormalizePlurals(raw string) Key {
	key := Normalize(raw)
	if key == Blank {
		return key
	}

	words := strings.Split(string(key), " ")
	for i, w := range words {
		words[i] = singular(w)
	}

	return Key(strings.Join(words, " "))
}

// NewNormalizer returns NormalizePlurals when foldPlurals is set, and
// Normalize otherwise.
func NewNormalizer(foldPlurals bool) Normalizer {
	if foldPlurals {
		return NormalizePlurals
	}

	return Normalize
}

func singular(w string) string {
	if utf8.RuneCountInString(w) < 4 {
		return w
	}

	switch {
	case strings.HasSuffix(w, "ies") && utf8.RuneCountInString(w) > 4:
		return strings.TrimSuffix(w, "ies") + "y"
	case strings.HasSuffix(w, "sses"),
		strings.HasSuffix(w, "xes"),
		strings.HasSuffix(w, "zes"),
		strings.HasSuffix(w, "ches"),
		strings.HasSuffix(w, "shes"):
		return strings.TrimSuffix(w, "es")
	case strings.HasSuffix(w, "ss"), strings.HasSuffix(w, "us"):
		return w
	case strings.HasSuffix(w, "s"):
		return strings.TrimSuffix(w, "s")
	}

	return w
}
