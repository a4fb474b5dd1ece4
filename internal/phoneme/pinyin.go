package phoneme

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-pinyin"
)

// PinyinPhonemizer converts Han text to initial and final symbols. Each
// syllable yields its initial, the vowel that dominates the final, and N
// for a nasal coda: 中国 -> zh o N g o.
type PinyinPhonemizer struct {
	args pinyin.Args
}

// NewPinyinPhonemizer returns a Mandarin phonemizer.
func NewPinyinPhonemizer() *PinyinPhonemizer {
	args := pinyin.NewArgs()
	args.Style = pinyin.Normal
	return &PinyinPhonemizer{args: args}
}

// Phonemes implements Phonemizer. Punctuation becomes pau and text outside
// the Han block is skipped.
func (p *PinyinPhonemizer) Phonemes(text string) ([]string, error) {
	var out []string
	var run strings.Builder

	flush := func() {
		if run.Len() == 0 {
			return
		}
		for _, syllable := range pinyin.LazyPinyin(run.String(), p.args) {
			out = append(out, splitSyllable(syllable)...)
		}
		run.Reset()
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			run.WriteRune(r)
		case unicode.IsPunct(r):
			flush()
			out = append(out, "pau")
		default:
			flush()
		}
	}
	flush()
	return out, nil
}

// Ordered so that zh, ch and sh win over z, c and s.
var pinyinInitials = []string{
	"zh", "ch", "sh",
	"b", "p", "m", "f", "d", "t", "n", "l",
	"g", "k", "h", "j", "q", "x", "r", "z", "c", "s", "y", "w",
}

// finalVowels covers finals where the written vowel order misleads.
var finalVowels = map[string]string{
	"iu": VowelO, // iou
	"ui": VowelE, // uei
	"er": VowelA,
}

// splitSyllable breaks a toneless pinyin syllable into symbols.
func splitSyllable(s string) []string {
	s = strings.ToLower(s)
	if s == "" {
		return nil
	}
	if s == "n" || s == "ng" {
		return []string{"N"}
	}

	var out []string
	final := s
	for _, ini := range pinyinInitials {
		if strings.HasPrefix(s, ini) && len(s) > len(ini) {
			out = append(out, ini)
			final = s[len(ini):]
			break
		}
	}

	nasal := false
	switch {
	case strings.HasSuffix(final, "ng"):
		final, nasal = strings.TrimSuffix(final, "ng"), true
	case strings.HasSuffix(final, "n") && len(final) > 1:
		final, nasal = strings.TrimSuffix(final, "n"), true
	}

	out = append(out, finalVowel(final))
	if nasal {
		out = append(out, "N")
	}
	return out
}

func finalVowel(final string) string {
	if v, ok := finalVowels[final]; ok {
		return v
	}
	switch {
	case strings.Contains(final, "a"):
		return VowelA
	case strings.Contains(final, "o"):
		return VowelO
	case strings.Contains(final, "e"):
		return VowelE
	case strings.Contains(final, "i"):
		return VowelI
	}
	// u, v and ü
	return VowelU
}
