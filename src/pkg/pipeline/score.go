package pipeline

import "unicode"

/*
Score computes the plausibility score of recognized text: the ratio of
alphanumeric-or-whitespace runes to total rune count, in [0,1]. Empty text
scores 0.

Recognition garbage on noisy input produces a high density of punctuation and
symbol noise, which this ratio penalizes, while legitimate multilingual text
(accented Latin script included) scores near 1. It is a cheap filter, not a
correctness oracle: alphanumeric garbage passes it.
*/
func Score(text string) float64 {
	if text == "" {
		return 0
	}
	total := 0
	valid := 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
			valid++
		}
	}
	return float64(valid) / float64(total)
}
