package subtitles

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/mgpai22/pressurecooker/internal/caption"
)

// below this confidence a guess is reported as unreliable
const minGuessConfidence = 0.8

type LanguageGuess struct {
	Code       string
	Confidence float64
	Reliable   bool
}

// GuessLanguage inspects the cue text of lang and guesses its natural
// language. It is advisory only; nothing applies the guess automatically.
func GuessLanguage(set *caption.Set, lang string) (LanguageGuess, bool) {
	var sb strings.Builder
	for _, c := range set.Captions(lang) {
		sb.WriteString(c.Text())
		sb.WriteString("\n")
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return LanguageGuess{}, false
	}

	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" {
		code = info.Lang.Iso6393()
	}
	if code == "" {
		return LanguageGuess{}, false
	}
	return LanguageGuess{
		Code:       caption.NormalizeLanguage(code),
		Confidence: info.Confidence,
		Reliable:   info.Confidence >= minGuessConfidence,
	}, true
}
