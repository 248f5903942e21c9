package subtitles

import (
	"errors"
	"fmt"

	"github.com/mgpai22/pressurecooker/internal/caption"
)

// FormatReader adapts one caption engine to a uniform detect/read contract.
// Read errors of any kind mean "try the next reader".
type FormatReader interface {
	Format() Format
	// RequiresExplicitLanguage is true for formats that carry no language
	// tag; their cues are tagged with the lang passed to Read.
	RequiresExplicitLanguage() bool
	Detect(text string) bool
	Read(text, lang string) (*caption.Set, error)
}

type taggedEngine interface {
	Detect(text string) bool
	Read(text, lang string) (*caption.Set, error)
}

type selfDescribingEngine interface {
	Detect(text string) bool
	Read(text string) (*caption.Set, error)
}

// reader for formats without a language tag (SRT, WebVTT, SCC)
type LanguageTaggedReader struct {
	format Format
	engine taggedEngine
}

func NewLanguageTaggedReader(format Format, engine taggedEngine) *LanguageTaggedReader {
	return &LanguageTaggedReader{format: format, engine: engine}
}

func (r *LanguageTaggedReader) Format() Format                 { return r.format }
func (r *LanguageTaggedReader) RequiresExplicitLanguage() bool { return true }
func (r *LanguageTaggedReader) Detect(text string) bool        { return r.engine.Detect(text) }

func (r *LanguageTaggedReader) Read(text, lang string) (*caption.Set, error) {
	if lang == "" {
		lang = caption.Unknown
	}
	set, err := r.engine.Read(text, lang)
	return checkDecode(r.format, set, err)
}

// reader for formats that name their own languages (SAMI, TTML/DFXP); the
// lang argument is ignored
type SelfDescribingReader struct {
	format Format
	engine selfDescribingEngine
}

func NewSelfDescribingReader(format Format, engine selfDescribingEngine) *SelfDescribingReader {
	return &SelfDescribingReader{format: format, engine: engine}
}

func (r *SelfDescribingReader) Format() Format                 { return r.format }
func (r *SelfDescribingReader) RequiresExplicitLanguage() bool { return false }
func (r *SelfDescribingReader) Detect(text string) bool        { return r.engine.Detect(text) }

func (r *SelfDescribingReader) Read(text, _ string) (*caption.Set, error) {
	set, err := r.engine.Read(text)
	return checkDecode(r.format, set, err)
}

func checkDecode(format Format, set *caption.Set, err error) (*caption.Set, error) {
	switch {
	case errors.Is(err, caption.ErrInvalidText):
		return nil, fmt.Errorf("%s: %w: %w", format, ErrEncoding, err)
	case err != nil:
		return nil, fmt.Errorf("%s decode failed: %w", format, err)
	case set == nil:
		return nil, fmt.Errorf("%s: %w", format, ErrNoResult)
	}
	return set, nil
}
