package subtitles

import (
	"github.com/mgpai22/pressurecooker/internal/caption"
)

// Options for a one-shot conversion.
type Options struct {
	// format hint; empty tries every reader in detection order
	Format string
	// input text encoding; empty means UTF-8
	Encoding string
}

// outcome of a successful conversion
type Result struct {
	Format   Format
	Language string
	Cues     int
}

// ConvertFile converts inPath to WebVTT at outPath for lang. An input whose
// format carries no language tag is assigned lang before rendering. outPath
// is only created once the whole document has rendered.
func ConvertFile(inPath, outPath, lang string, opts Options) (*Result, error) {
	// an unknown hint fails before any I/O
	readers, err := ReadersFor(opts.Format)
	if err != nil {
		return nil, err
	}
	text, err := ReadText(inPath, opts.Encoding)
	if err != nil {
		return nil, err
	}

	out, res, err := convertText(readers, text, lang)
	if err != nil {
		return nil, err
	}
	if err := WriteText(outPath, out); err != nil {
		return nil, err
	}
	return res, nil
}

// ConvertString is the in-memory form of ConvertFile.
func ConvertString(text, lang, format string) (string, error) {
	readers, err := ReadersFor(format)
	if err != nil {
		return "", err
	}
	out, _, err := convertText(readers, text, lang)
	return out, err
}

func convertText(readers []FormatReader, text, lang string) (string, *Result, error) {
	conv := NewConverter(readers, text)
	if err := adoptUnknownLanguage(conv, lang); err != nil {
		return "", nil, err
	}

	out, err := conv.Convert(lang)
	if err != nil {
		return "", nil, err
	}

	code := caption.NormalizeLanguage(lang)
	set, _ := conv.CaptionSet()
	return out, &Result{
		Format:   conv.Format(),
		Language: code,
		Cues:     countRendered(set.Captions(code)),
	}, nil
}

// adoptUnknownLanguage retags a document that only carries the unknown
// sentinel with the requested language. Self-describing formats keep the
// languages they declare, even when none could be resolved.
func adoptUnknownLanguage(conv *Converter, lang string) error {
	codes, err := conv.LanguageCodes()
	if err != nil {
		return err
	}
	if !conv.RequiresExplicitLanguage() {
		return nil
	}
	target := caption.NormalizeLanguage(lang)
	if target == caption.Unknown {
		return nil
	}
	if len(codes) == 1 && codes[0] == caption.Unknown {
		return conv.ReplaceUnknownLanguage(target)
	}
	return nil
}

func countRendered(caps []*caption.Caption) int {
	n := 0
	for _, c := range caps {
		if !c.IsBlank() {
			n++
		}
	}
	return n
}
