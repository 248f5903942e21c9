package subtitles

import (
	"fmt"
	"strings"

	"github.com/mgpai22/pressurecooker/internal/caption"
)

// conversion session lifecycle
type State int

const (
	StateUnstarted State = iota
	StateDecoding
	StateDecoded
	StateRendered
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnstarted:
		return "unstarted"
	case StateDecoding:
		return "decoding"
	case StateDecoded:
		return "decoded"
	case StateRendered:
		return "rendered"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Converter is a single-use conversion session for one input text. It
// decodes at most once and keeps the result; it is not safe for concurrent
// use.
type Converter struct {
	readers []FormatReader
	text    string
	writer  *Writer

	state    State
	set      *caption.Set
	format   Format
	untagged bool
	// decode failure, returned again on every later call
	err error
}

func NewConverter(readers []FormatReader, text string) *Converter {
	return &Converter{
		readers: readers,
		text:    text,
		writer:  NewWriter(),
	}
}

func (c *Converter) State() State {
	return c.state
}

// Format is the format of the reader that decoded the input, empty until
// decoding succeeds.
func (c *Converter) Format() Format {
	return c.format
}

// RequiresExplicitLanguage reports whether the decoding reader's format
// carries no language tags. False until decoding succeeds.
func (c *Converter) RequiresExplicitLanguage() bool {
	return c.untagged
}

// CaptionSet decodes the input with the first reader that detects it and
// returns a non-nil set. The result, or the failure, is cached.
func (c *Converter) CaptionSet() (*caption.Set, error) {
	if c.set != nil {
		return c.set, nil
	}
	if c.err != nil {
		return nil, c.err
	}

	c.state = StateDecoding
	for _, r := range c.readers {
		if !r.Detect(c.text) {
			continue
		}
		set, err := r.Read(c.text, caption.Unknown)
		if err != nil || set == nil {
			continue
		}
		if set.IsEmpty() {
			return nil, c.fail(fmt.Errorf("%w: %s input has no captions", ErrInvalidFormat, r.Format()))
		}
		c.set = set
		c.format = r.Format()
		c.untagged = r.RequiresExplicitLanguage()
		c.state = StateDecoded
		return set, nil
	}

	return nil, c.fail(ErrInvalidFormat)
}

func (c *Converter) fail(err error) error {
	c.err = err
	c.state = StateFailed
	return err
}

// LanguageCodes lists the languages of the decoded document, which may
// include caption.Unknown.
func (c *Converter) LanguageCodes() ([]string, error) {
	set, err := c.CaptionSet()
	if err != nil {
		return nil, err
	}
	return set.Languages(), nil
}

func (c *Converter) HasLanguage(code string) (bool, error) {
	codes, err := c.LanguageCodes()
	if err != nil {
		return false, err
	}
	code = caption.NormalizeLanguage(code)
	for _, have := range codes {
		if have == code {
			return true, nil
		}
	}
	return false, nil
}

// ReplaceUnknownLanguage retags every caption.Unknown cue of the cached set
// with code, keeping styles and layout.
func (c *Converter) ReplaceUnknownLanguage(code string) error {
	set, err := c.CaptionSet()
	if err != nil {
		return err
	}
	code = caption.NormalizeLanguage(code)
	if code == caption.Unknown {
		return nil
	}
	set.RenameLanguage(caption.Unknown, code)
	return nil
}

// Convert renders the cues of one language as WebVTT. A language with no
// cues fails with a *LanguageError and leaves the decoded data in place.
func (c *Converter) Convert(code string) (string, error) {
	set, err := c.CaptionSet()
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(code) == "" {
		return "", &LanguageError{Requested: code, Available: set.Languages()}
	}
	code = caption.NormalizeLanguage(code)
	if len(set.Captions(code)) == 0 {
		return "", &LanguageError{Requested: code, Available: set.Languages()}
	}

	out, err := c.writer.Render(set.Subset(code))
	if err != nil {
		c.state = StateFailed
		return "", err
	}
	c.state = StateRendered
	return out, nil
}

// Write converts code and stores the result at outPath. Nothing is written
// when conversion fails.
func (c *Converter) Write(outPath, code string) error {
	out, err := c.Convert(code)
	if err != nil {
		return err
	}
	return WriteText(outPath, out)
}
