package packer

import (
	"regexp"

	"golang.org/x/text/unicode/norm"
)

const (
	// MaxWeightedLength is the weighted budget of a single X post.
	MaxWeightedLength = 280

	// URLWeight is what any URL counts for, whatever its literal length.
	URLWeight = 23
)

var urlPattern = regexp.MustCompile(`https?://[^\s]+`)

// lightRanges weigh 1; every other code point weighs 2.
var lightRanges = [][2]rune{
	{0x0000, 0x10FF},
	{0x2000, 0x200D},
	{0x2010, 0x201F},
	{0x2032, 0x2037},
}

// WeightedLength approximates how X counts post length: NFC normalised, URLs
// at URLWeight, Latin and general punctuation at 1, everything else (CJK,
// emoji) at 2, and variation selectors at 0. A zero width joiner or skin tone
// modifier after a weight 2 code point folds into it, so an emoji sequence
// counts once. X segments by grapheme cluster, so sequences this does not
// recognise can still overcount, which only errs towards shorter posts.
func WeightedLength(text string) int {
	text = norm.NFC.String(text)

	total := 0
	last := 0
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		total += runesWeight(text[last:loc[0]])
		total += URLWeight
		last = loc[1]
	}
	total += runesWeight(text[last:])

	return total
}

const zeroWidthJoiner = 0x200D

func runesWeight(s string) int {
	total := 0
	heavy := false
	joined := false
	for _, r := range s {
		switch {
		case joined:
			joined = false
			continue
		case heavy && r == zeroWidthJoiner:
			joined = true
			continue
		case heavy && isSkinToneModifier(r):
			continue
		}

		w := runeWeight(r)
		if w == 0 {
			continue
		}
		total += w
		heavy = w == 2
	}
	return total
}

func runeWeight(r rune) int {
	if isVariationSelector(r) {
		return 0
	}
	for _, rng := range lightRanges {
		if r >= rng[0] && r <= rng[1] {
			return 1
		}
	}
	return 2
}

func isVariationSelector(r rune) bool {
	return (r >= 0xFE00 && r <= 0xFE0F) || (r >= 0xE0100 && r <= 0xE01EF)
}

func isSkinToneModifier(r rune) bool {
	return r >= 0x1F3FB && r <= 0x1F3FF
}
