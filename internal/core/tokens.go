package core

import "unicode/utf16"

// EstimateTokens is a cheap token estimator (~4 chars ≈ 1 token), ceil(len/4).
// Chunking and retrieval budgets both depend on this exact formula.
func EstimateTokens(s string) int {
	n := TextLength(s)
	if n <= 0 {
		return 0
	}
	return (n + 3) / 4
}

// TextLength counts s in UTF-16 code units: characters outside the BMP count twice.
func TextLength(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
