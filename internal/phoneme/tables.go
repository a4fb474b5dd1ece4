package phoneme

// Vowel classes produced by the analyzer.
const (
	VowelA       = "a"
	VowelI       = "i"
	VowelU       = "u"
	VowelE       = "e"
	VowelO       = "o"
	VowelN       = "n"
	VowelSilence = "sil"
)

// phonemeVowels maps OpenJTalk-style symbols and merged syllables to the
// vowel that shapes the mouth.
var phonemeVowels = map[string]string{
	// Vowels
	"a": "a", "i": "i", "u": "u", "e": "e", "o": "o",

	// a-row
	"ka": "a", "ga": "a", "sa": "a", "za": "a", "ta": "a", "da": "a",
	"na": "a", "ha": "a", "ba": "a", "pa": "a", "ma": "a", "ya": "a",
	"ra": "a", "wa": "a",

	// i-row
	"ki": "i", "gi": "i", "si": "i", "zi": "i", "ti": "i", "di": "i",
	"ni": "i", "hi": "i", "bi": "i", "pi": "i", "mi": "i", "ri": "i",
	"ji": "i", "chi": "i",

	// u-row
	"ku": "u", "gu": "u", "su": "u", "zu": "u", "tu": "u", "du": "u",
	"nu": "u", "hu": "u", "bu": "u", "pu": "u", "mu": "u", "yu": "u",
	"ru": "u", "tsu": "u",

	// e-row
	"ke": "e", "ge": "e", "se": "e", "ze": "e", "te": "e", "de": "e",
	"ne": "e", "he": "e", "be": "e", "pe": "e", "me": "e", "re": "e",

	// o-row
	"ko": "o", "go": "o", "so": "o", "zo": "o", "to": "o", "do": "o",
	"no": "o", "ho": "o", "bo": "o", "po": "o", "mo": "o", "yo": "o",
	"ro": "o",

	// Special symbols
	"N":   "n",   // moraic nasal
	"Q":   "sil", // geminate stop
	"pau": "sil",
	"sil": "sil",
	"sp":  "sil",

	// Long vowel mark and palatalised syllables
	"ー":   "a",
	"kya": "a", "gya": "a", "sha": "a", "ja": "a", "cha": "a",
	"nya": "a", "hya": "a", "bya": "a", "pya": "a", "mya": "a", "rya": "a",
	"kyu": "u", "gyu": "u", "shu": "u", "ju": "u", "chu": "u",
	"nyu": "u", "hyu": "u", "byu": "u", "pyu": "u", "myu": "u", "ryu": "u",
	"kyo": "o", "gyo": "o", "sho": "o", "jo": "o", "cho": "o",
	"nyo": "o", "hyo": "o", "byo": "o", "pyo": "o", "myo": "o", "ryo": "o",
}

// defaultDuration applies to symbols missing from baseDurations.
const defaultDuration = 0.15

// baseDurations holds per-symbol durations in seconds before the text
// length factor. Consonants common at word ends are slightly longer.
var baseDurations = map[string]float64{
	"a": 0.20, "i": 0.18, "u": 0.19, "e": 0.19, "o": 0.21,

	"k": 0.08, "g": 0.09, "s": 0.18, "z": 0.12, "t": 0.09, "d": 0.10,
	"n": 0.15, "h": 0.16, "b": 0.10, "p": 0.09, "m": 0.12, "r": 0.08,
	"w": 0.10, "y": 0.08, "j": 0.11, "c": 0.10, "f": 0.12, "v": 0.11,

	"N":   0.15,
	"Q":   0.08,
	"pau": 0.20,
	"sil": 0.05,
	"sp":  0.03,
}

// vowelIntensity is the mouth opening weight per vowel class.
var vowelIntensity = map[string]float64{
	"a":   0.9,
	"e":   0.8,
	"o":   0.85,
	"i":   0.7,
	"u":   0.65,
	"n":   0.4,
	"sil": 0.0,
}

// defaultIntensity applies to vowel classes missing from vowelIntensity.
const defaultIntensity = 0.5

// isPause reports whether p is one of the pause symbols.
func isPause(p string) bool {
	switch p {
	case "pau", "sil", "sp":
		return true
	}
	return false
}

// kanaVowels is the single-character fallback table used when no
// phonemizer is available.
var kanaVowels = map[rune]string{
	'あ': "a", 'い': "i", 'う': "u", 'え': "e", 'お': "o",
	'か': "a", 'き': "i", 'く': "u", 'け': "e", 'こ': "o",
	'が': "a", 'ぎ': "i", 'ぐ': "u", 'げ': "e", 'ご': "o",
	'さ': "a", 'し': "i", 'す': "u", 'せ': "e", 'そ': "o",
	'ざ': "a", 'じ': "i", 'ず': "u", 'ぜ': "e", 'ぞ': "o",
	'た': "a", 'ち': "i", 'つ': "u", 'て': "e", 'と': "o",
	'だ': "a", 'ぢ': "i", 'づ': "u", 'で': "e", 'ど': "o",
	'な': "a", 'に': "i", 'ぬ': "u", 'ね': "e", 'の': "o",
	'は': "a", 'ひ': "i", 'ふ': "u", 'へ': "e", 'ほ': "o",
	'ば': "a", 'び': "i", 'ぶ': "u", 'べ': "e", 'ぼ': "o",
	'ぱ': "a", 'ぴ': "i", 'ぷ': "u", 'ぺ': "e", 'ぽ': "o",
	'ま': "a", 'み': "i", 'む': "u", 'め': "e", 'も': "o",
	'や': "a", 'ゆ': "u", 'よ': "o",
	'ら': "a", 'り': "i", 'る': "u", 'れ': "e", 'ろ': "o",
	'わ': "a", 'ゐ': "i", 'ゑ': "e", 'を': "o", 'ん': "n",
	'ー': "a", // long vowel mark
}

// pauseMarks are treated as pauses by the kana fallback.
const pauseMarks = "。、！？．，!?"

// Kana fallback timing
const (
	kanaDuration  = 0.2
	kanaIntensity = 0.7
	pauseDuration = 0.3
)

// Katakana block offsets for folding to hiragana.
const (
	katakanaFirst  = 'ァ'
	katakanaLast   = 'ヶ'
	katakanaOffset = 'ァ' - 'ぁ'
)

// foldKana maps katakana to the matching hiragana and leaves every other
// rune alone. The long vowel mark is shared by both scripts.
func foldKana(r rune) rune {
	if r >= katakanaFirst && r <= katakanaLast {
		return r - katakanaOffset
	}
	return r
}
