package phoneme

import (
	"strings"
	"unicode/utf8"
)

// kanaEvents approximates one event per kana character. Punctuation becomes
// a pause; anything else is skipped.
func kanaEvents(text string) []Event {
	var events []Event
	var t float64
	i := 0
	for _, r := range text {
		switch v, ok := kanaVowels[foldKana(r)]; {
		case ok:
			events = append(events, Event{
				Phoneme:      string(r),
				Start:        t,
				Duration:     kanaDuration,
				Vowel:        v,
				Intensity:    kanaIntensity,
				MoraPosition: i,
			})
			t += kanaDuration
		case strings.ContainsRune(pauseMarks, r):
			events = append(events, Event{
				Phoneme:      "pau",
				Start:        t,
				Duration:     pauseDuration,
				Vowel:        VowelSilence,
				MoraPosition: i,
			})
			t += pauseDuration
		}
		i++
	}
	return events
}

// KanaPhonemizer converts hiragana and katakana to OpenJTalk-style
// symbols, e.g. こんにちは -> k o N n i ch i w a. Kanji and Latin text are
// skipped, so it suits TTS input that has already been read out as kana.
type KanaPhonemizer struct{}

// NewKanaPhonemizer returns a kana phonemizer.
func NewKanaPhonemizer() *KanaPhonemizer { return &KanaPhonemizer{} }

// greetings whose final は is read as わ.
var particleWa = strings.NewReplacer(
	"こんにちは", "こんにちわ",
	"こんばんは", "こんばんわ",
)

// Phonemes implements Phonemizer.
func (KanaPhonemizer) Phonemes(text string) ([]string, error) {
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(foldKana(r))
	}
	folded := particleWa.Replace(b.String())

	var out []string
	lastVowel := ""
	for len(folded) > 0 {
		r, size := utf8.DecodeRuneInString(folded)
		folded = folded[size:]

		switch {
		case r == 'っ':
			out = append(out, "cl")
			continue
		case r == 'ー':
			if lastVowel != "" {
				out = append(out, lastVowel)
			}
			continue
		case strings.ContainsRune(pauseMarks, r) || r == '…':
			out = append(out, "pau")
			lastVowel = ""
			continue
		}

		if v, ok := smallVowels[r]; ok {
			out = applySmallVowel(out, v)
			lastVowel = v
			continue
		}
		if v, ok := smallGlides[r]; ok {
			out = applyGlide(out, v)
			lastVowel = v
			continue
		}

		syms, ok := kanaSymbols[r]
		if !ok {
			continue
		}
		out = append(out, syms...)
		lastVowel = syms[len(syms)-1]
		if lastVowel == "N" {
			lastVowel = ""
		}
	}
	return out, nil
}

// applyGlide merges a small ya/yu/yo into the preceding i-row syllable:
// ki+ya -> ky a, shi+ya -> sh a.
func applyGlide(out []string, vowel string) []string {
	n := len(out)
	if n >= 2 && out[n-1] == VowelI {
		c := out[n-2]
		switch c {
		case "sh", "ch", "j":
		default:
			c += "y"
		}
		out[n-2] = c
		out[n-1] = vowel
		return out
	}
	return append(out, "y", vowel)
}

// applySmallVowel replaces the preceding vowel: fu+a -> f a, u+i -> w i.
func applySmallVowel(out []string, vowel string) []string {
	n := len(out)
	if n == 0 || !isPlainVowel(out[n-1]) {
		return append(out, vowel)
	}
	if n == 1 || !isConsonant(out[n-2]) {
		if out[n-1] == VowelU {
			out[n-1] = "w"
		}
		return append(out, vowel)
	}
	out[n-1] = vowel
	return out
}

func isPlainVowel(s string) bool {
	switch s {
	case VowelA, VowelI, VowelU, VowelE, VowelO:
		return true
	}
	return false
}

func isConsonant(s string) bool {
	return !isPlainVowel(s) && s != "N" && s != "cl" && s != "pau"
}

var smallVowels = map[rune]string{
	'ぁ': VowelA, 'ぃ': VowelI, 'ぅ': VowelU, 'ぇ': VowelE, 'ぉ': VowelO,
	'ゎ': VowelA,
}

var smallGlides = map[rune]string{
	'ゃ': VowelA, 'ゅ': VowelU, 'ょ': VowelO,
}

// kanaSymbols maps each full-size hiragana to its symbols.
var kanaSymbols = buildKanaSymbols()

func buildKanaSymbols() map[rune][]string {
	rows := []struct {
		consonant string
		kana      string
		vowels    string
	}{
		{"", "あいうえお", "aiueo"},
		{"k", "かきくけこ", "aiueo"},
		{"g", "がぎぐげご", "aiueo"},
		{"s", "さしすせそ", "aiueo"},
		{"z", "ざじずぜぞ", "aiueo"},
		{"t", "たちつてと", "aiueo"},
		{"d", "だぢづでど", "aiueo"},
		{"n", "なにぬねの", "aiueo"},
		{"h", "はひふへほ", "aiueo"},
		{"b", "ばびぶべぼ", "aiueo"},
		{"p", "ぱぴぷぺぽ", "aiueo"},
		{"m", "まみむめも", "aiueo"},
		{"y", "やゆよ", "auo"},
		{"r", "らりるれろ", "aiueo"},
		{"w", "わ", "a"},
	}

	m := make(map[rune][]string)
	for _, row := range rows {
		kana := []rune(row.kana)
		for j, r := range kana {
			v := string(row.vowels[j])
			if row.consonant == "" {
				m[r] = []string{v}
			} else {
				m[r] = []string{row.consonant, v}
			}
		}
	}

	// Irregular readings
	m['し'] = []string{"sh", "i"}
	m['ち'] = []string{"ch", "i"}
	m['つ'] = []string{"ts", "u"}
	m['ふ'] = []string{"f", "u"}
	m['じ'] = []string{"j", "i"}
	m['ぢ'] = []string{"j", "i"}
	m['づ'] = []string{"z", "u"}
	m['を'] = []string{"o"}
	m['ゐ'] = []string{"i"}
	m['ゑ'] = []string{"e"}
	m['ん'] = []string{"N"}
	m['ゔ'] = []string{"v", "u"}
	return m
}
