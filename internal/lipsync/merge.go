package lipsync

import "github.com/linuxmatters/mouthpiece/internal/phoneme"

// syllables joins a consonant symbol with the vowel after it.
var syllables = buildSyllables()

func buildSyllables() map[[2]string]string {
	m := make(map[[2]string]string)
	for _, c := range []string{"k", "g", "s", "z", "t", "d", "n", "h", "b", "p", "m", "r", "w"} {
		for _, v := range []string{"a", "i", "u", "e", "o"} {
			m[[2]string{c, v}] = c + v
		}
	}
	for _, v := range []string{"a", "u", "o"} {
		m[[2]string{"y", v}] = "y" + v
	}
	for _, c := range []string{"ch", "sh", "j"} {
		for _, v := range []string{"i", "u", "o"} {
			m[[2]string{c, v}] = c + v
		}
	}
	// w+a maps to "ha", not "wa".
	m[[2]string{"w", "a"}] = "ha"
	return m
}

// singles rewrites symbols left over after merging.
var singles = map[string]string{
	"w": "wa",
	"n": "N",
}

// mergeSymbols pairs consonants with the following vowel and rewrites the
// leftovers.
func mergeSymbols(raw []string) []string {
	merged := make([]string, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if i+1 < len(raw) {
			if s, ok := syllables[[2]string{raw[i], raw[i+1]}]; ok {
				merged = append(merged, s)
				i++
				continue
			}
		}
		if s, ok := singles[raw[i]]; ok {
			merged = append(merged, s)
			continue
		}
		merged = append(merged, raw[i])
	}
	return merged
}

// silentSymbol reports symbols that never count as meaningful speech.
func silentSymbol(p string) bool {
	switch p {
	case "pau", "sil", "sp", "Q", "cl":
		return true
	}
	return false
}

// markEndings flags the last DetectionRange meaningful symbols.
func markEndings(symbols []string, p EndingProtection) []bool {
	endings := make([]bool, len(symbols))
	if !p.Enabled {
		return endings
	}
	remaining := p.DetectionRange
	for i := len(symbols) - 1; i >= 0 && remaining > 0; i-- {
		if silentSymbol(symbols[i]) {
			continue
		}
		endings[i] = true
		remaining--
	}
	return endings
}

// baseDuration is a relative weight; frames are rescaled afterwards.
func baseDuration(p string) float64 {
	switch p {
	case "a", "i", "u", "e", "o":
		return 1.0
	case "N", "Q", "pau", "cl":
		return 0.3
	}
	return 0.7
}

// engineVowels extends the shared phoneme table with symbols the engine
// gives a mouth shape to.
var engineVowels = map[string]string{
	"A": "a", "I": "i", "U": "u", "E": "e", "O": "o",
	"cl":  "sil",
	"w":   "u",
	"v":   "u",
	"f":   "u",
	"sh":  "i",
	"shi": "i",
}

func vowelOf(p string) string {
	if v, ok := engineVowels[p]; ok {
		return v
	}
	return phoneme.VowelFor(p)
}

func intensityOf(vowel string) float64 {
	switch vowel {
	case "a", "e", "o":
		return 0.9
	case "i", "u":
		return 0.7
	case "n":
		return 0.3
	}
	return 0.1
}

// toFrames lays merged symbols end to end at their base durations.
func toFrames(symbols []string, endings []bool) []Frame {
	frames := make([]Frame, len(symbols))
	var t float64
	for i, p := range symbols {
		vowel := vowelOf(p)
		d := baseDuration(p)
		frames[i] = Frame{
			Timestamp: t,
			Vowel:     vowel,
			Intensity: intensityOf(vowel),
			Duration:  d,
			IsEnding:  endings[i],
		}
		t += d
	}
	return frames
}
