package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupAnswers(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		submissions map[string]string
		expected    []Group
	}{
		{
			name:        "case insensitive match",
			submissions: map[string]string{"a": "glad", "b": "Glad", "c": "sad"},
			expected: []Group{
				{Key: "glad", Players: []string{"a", "b"}},
				{Key: "sad", Players: []string{"c"}},
			},
		},
		{
			name:        "blank answers never match",
			submissions: map[string]string{"p1": "", "p2": "   "},
			expected: []Group{
				{Key: Blank, Players: []string{"p1"}},
				{Key: Blank, Players: []string{"p2"}},
			},
		},
		{
			name:        "largest group first",
			submissions: map[string]string{"a": "x", "b": "y", "c": "y", "d": "Y ", "e": "x"},
			expected: []Group{
				{Key: "y", Players: []string{"b", "c", "d"}},
				{Key: "x", Players: []string{"a", "e"}},
			},
		},
		{
			name:        "singletons ordered by player",
			submissions: map[string]string{"c": "three", "a": "one", "b": "two"},
			expected: []Group{
				{Key: "one", Players: []string{"a"}},
				{Key: "two", Players: []string{"b"}},
				{Key: "three", Players: []string{"c"}},
			},
		},
		{
			name:        "empty round",
			submissions: map[string]string{},
			expected:    nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expected, GroupAnswers(tc.submissions, nil))
		})
	}
}

func TestGroupAnswers_Deterministic(t *testing.T) {
	t.Parallel()

	submissions := map[string]string{
		"p1": "joy", "p2": "Joy", "p3": "bliss", "p4": "", "p5": "bliss", "p6": "glee", "p7": " ",
	}

	first := GroupAnswers(submissions, Normalize)
	for range 50 {
		require.Equal(t, first, GroupAnswers(submissions, Normalize))
	}
}

func TestGroupAnswers_UsesNormalizer(t *testing.T) {
	t.Parallel()

	groups := GroupAnswers(map[string]string{"a": "cats", "b": "Cat"}, NormalizePlurals)

	require.Len(t, groups, 1)
	assert.Equal(t, []string{"a", "b"}, groups[0].Players)
}
