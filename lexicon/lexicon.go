/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package lexicon supplies the prompts players write synonyms for.
package lexicon

import (
	"bufio"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"sync"
)

//go:embed prompts.txt
var defaultPrompts string

var ErrEmpty = errors.New("lexicon has no prompts")

// Provider hands out prompts. Implementations must be safe for
// concurrent use.
type Provider interface {
	Next() string
}

// WordList deals prompts from a fixed list in shuffled order, reshuffling
// once every prompt has been used.
type WordList struct {
	mu      sync.Mutex
	words   []string
	pos     int
	shuffle func(n int, swap func(i, j int))
}

// New returns a WordList over words. Blank lines and lines starting with
// '#' are skipped; duplicates are kept once.
func New(words []string) (*WordList, error) {
	seen := make(map[string]bool, len(words))
	cleaned := make([]string, 0, len(words))

	for _, w := range words {
		w = strings.TrimSpace(w)
		if w == "" || strings.HasPrefix(w, "#") || seen[w] {
			continue
		}
		seen[w] = true
		cleaned = append(cleaned, w)
	}

	if len(cleaned) == 0 {
		return nil, ErrEmpty
	}

	l := &WordList{
		words:   cleaned,
		shuffle: rand.Shuffle,
	}
	l.shuffle(len(l.words), l.swap)

	return l, nil
}

// Read builds a WordList from newline-delimited text.
func Read(r io.Reader) (*WordList, error) {
	var words []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		words = append(words, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return New(words)
}

// Load reads the prompt file at path, or the built-in list when path is
// empty.
func Load(path string) (*WordList, error) {
	if path == "" {
		return Read(strings.NewReader(defaultPrompts))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open prompt file %s: %w", path, err)
	}
	defer f.Close()

	l, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("could not read prompt file %s: %w", path, err)
	}

	return l, nil
}

// Next returns the next prompt.
func (l *WordList) Next() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pos == len(l.words) {
		l.pos = 0
		l.shuffle(len(l.words), l.swap)
	}

	w := l.words[l.pos]
	l.pos++

	return w
}

// Len returns the number of distinct prompts.
func (l *WordList) Len() int {
	return len(l.words)
}

func (l *WordList) swap(i, j int) {
	l.words[i], l.words[j] = l.words[j], l.words[i]
}
