package subtitles

import (
	"github.com/mgpai22/pressurecooker/internal/caption"
)

// builds a fresh reader for one format
type ReaderFactory func() FormatReader

type readerEntry struct {
	format Format
	build  ReaderFactory
}

// detection order; ambiguous input goes to the first reader that accepts it
var readerTable = []readerEntry{
	{FormatWebVTT, func() FormatReader { return NewLanguageTaggedReader(FormatWebVTT, caption.WebVTTReader{}) }},
	{FormatSRT, func() FormatReader { return NewLanguageTaggedReader(FormatSRT, caption.SRTReader{}) }},
	{FormatSAMI, func() FormatReader { return NewSelfDescribingReader(FormatSAMI, caption.SAMIReader{}) }},
	{FormatSCC, func() FormatReader { return NewLanguageTaggedReader(FormatSCC, caption.SCCReader{}) }},
	// ttml and dfxp share one engine
	{FormatTTML, func() FormatReader { return NewSelfDescribingReader(FormatTTML, caption.DFXPReader{}) }},
	{FormatDFXP, func() FormatReader { return NewSelfDescribingReader(FormatDFXP, caption.DFXPReader{}) }},
}

// ForFormat returns the factory for a format name or alias.
func ForFormat(name string) (ReaderFactory, error) {
	format, err := ParseFormat(name)
	if err != nil {
		return nil, err
	}
	for _, entry := range readerTable {
		if entry.format == format {
			return entry.build, nil
		}
	}
	// unreachable: ParseFormat only returns formats from the table
	return nil, ErrUnsupportedFormat
}

// AllReaders returns every factory in detection order.
func AllReaders() []ReaderFactory {
	out := make([]ReaderFactory, 0, len(readerTable))
	for _, entry := range readerTable {
		out = append(out, entry.build)
	}
	return out
}

// ReadersFor builds the candidate readers for a conversion: the single
// hinted format, or every format when hint is empty.
func ReadersFor(hint string) ([]FormatReader, error) {
	if hint == "" {
		factories := AllReaders()
		readers := make([]FormatReader, 0, len(factories))
		for _, build := range factories {
			readers = append(readers, build())
		}
		return readers, nil
	}

	build, err := ForFormat(hint)
	if err != nil {
		return nil, err
	}
	return []FormatReader{build()}, nil
}
