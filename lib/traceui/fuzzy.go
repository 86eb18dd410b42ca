// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package traceui

import (
	"strings"

	"github.com/junegunn/fzf/src/algo"
	"github.com/junegunn/fzf/src/util"
)

// FuzzyResult holds the outcome of a fuzzy match: a relevance score
// and the rune positions of the matched characters. A zero Score means
// no match.
type FuzzyResult struct {
	Score     int
	Positions []int
}

// fuzzyMatch runs fzf's FuzzyMatchV2 algorithm against text. Matching
// is case-insensitive: both sides are lowercased before the algorithm
// runs, so positions map back to the original text rune-for-rune. A
// nil slab is allowed; hot paths pass a reusable one.
func fuzzyMatch(text string, pattern []rune, slab *util.Slab) FuzzyResult {
	if len(pattern) == 0 {
		return FuzzyResult{}
	}

	loweredPattern := []rune(strings.ToLower(string(pattern)))
	chars := util.ToChars([]byte(strings.ToLower(text)))

	result, positions := algo.FuzzyMatchV2(true, false, true, &chars, loweredPattern, true, slab)
	if result.Score <= 0 {
		return FuzzyResult{}
	}

	match := FuzzyResult{Score: result.Score}
	if positions != nil {
		match.Positions = *positions
	}
	return match
}
