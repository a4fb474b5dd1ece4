package phoneme

import "strings"

// NormalizeSymbols flattens raw phonemizer output into clean symbols.
// Backends disagree on whether they return one symbol per element or a
// space-separated string, so every element is split on whitespace and
// empty pieces are dropped.
func NormalizeSymbols(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		out = append(out, strings.Fields(r)...)
	}
	return out
}
