package subtitles

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// format hint outside the known set
	ErrUnsupportedFormat = errors.New("unsupported subtitle format")
	// no reader both detected and decoded non-empty captions
	ErrInvalidFormat = errors.New("subtitle file is unsupported or unreadable")
	// decoding worked but the requested language has no captions
	ErrInvalidLanguage = errors.New("subtitle language not found")
	// bytes are not valid text in the declared encoding
	ErrEncoding = errors.New("invalid text encoding")
	// the WebVTT encoder rejected an otherwise valid caption set
	ErrRender = errors.New("failed to render subtitles")
	// a reader had nothing to offer for the input
	ErrNoResult = errors.New("reader produced no result")
)

// LanguageError reports a requested language missing from a decoded
// document, along with the languages that are present.
type LanguageError struct {
	Requested string
	Available []string
}

func (e *LanguageError) Error() string {
	available := "none"
	if len(e.Available) > 0 {
		available = strings.Join(e.Available, ", ")
	}
	return fmt.Sprintf("captions set is empty for language %q (available: %s)", e.Requested, available)
}

func (e *LanguageError) Unwrap() error {
	return ErrInvalidLanguage
}
