package transcript

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// defaultSimilarity is the Jaro-Winkler score above which a word window
// counts as the closing phrase. Transcription mangles phrases slightly
// ("interview is complete" vs "interview is completed"), so an exact
// substring check misses real endings.
const defaultSimilarity = 0.92

// PhraseDetector watches transcript text for a spoken closing phrase, such
// as the interviewer announcing that the interview is over.
type PhraseDetector struct {
	phrase     string
	words      int
	similarity float64
}

// NewPhraseDetector returns a detector for the given phrase. A nil detector
// is returned for an empty phrase; a nil detector never matches.
func NewPhraseDetector(phrase string) *PhraseDetector {
	phrase = normalize(phrase)
	if phrase == "" {
		return nil
	}
	return &PhraseDetector{
		phrase:     phrase,
		words:      len(strings.Fields(phrase)),
		similarity: defaultSimilarity,
	}
}

// Match reports whether text contains the closing phrase, allowing for small
// transcription differences. It slides a window of the phrase's word count
// across the text and scores each window against the phrase.
func (d *PhraseDetector) Match(text string) bool {
	if d == nil {
		return false
	}

	text = normalize(text)
	if strings.Contains(text, d.phrase) {
		return true
	}

	fields := strings.Fields(text)
	if len(fields) < d.words {
		return false
	}
	for i := 0; i+d.words <= len(fields); i++ {
		window := strings.Join(fields[i:i+d.words], " ")
		if matchr.JaroWinkler(window, d.phrase, true) >= d.similarity {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '!', '?', ';', ':', '"', '\'':
			return -1
		}
		return r
	}, s)
}
