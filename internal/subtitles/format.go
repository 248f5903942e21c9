package subtitles

import (
	"fmt"
	"path/filepath"
	"strings"
)

// input subtitle format identifier
type Format string

const (
	FormatWebVTT Format = "webvtt"
	FormatSRT    Format = "srt"
	FormatSAMI   Format = "sami"
	FormatSCC    Format = "scc"
	FormatTTML   Format = "ttml"
	FormatDFXP   Format = "dfxp"
)

var formatAliases = map[string]Format{
	"vtt": FormatWebVTT,
	"smi": FormatSAMI,
}

// ParseFormat resolves a case-insensitive format name or alias. A leading
// dot is accepted so file extensions can be passed directly.
func ParseFormat(name string) (Format, error) {
	key := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".")
	if f, ok := formatAliases[key]; ok {
		return f, nil
	}
	for _, entry := range readerTable {
		if string(entry.format) == key {
			return entry.format, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// Formats lists the supported formats in detection order.
func Formats() []Format {
	out := make([]Format, 0, len(readerTable))
	for _, entry := range readerTable {
		out = append(out, entry.format)
	}
	return out
}

// FormatFromExtension guesses a format from a file name. Detection does not
// rely on it; it only flags inputs whose extension disagrees with their
// content.
func FormatFromExtension(path string) (Format, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".xml":
		return FormatTTML, true
	case "":
		return "", false
	}
	f, err := ParseFormat(ext)
	if err != nil {
		return "", false
	}
	return f, true
}

// OutputPath derives the .vtt path written next to the input, or inside dir
// when one is given.
func OutputPath(inputPath, dir string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath)) + ".vtt"
	if dir == "" {
		dir = filepath.Dir(inputPath)
	}
	return filepath.Join(dir, base)
}
