package subtitles

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const byteOrderMark = "\ufeff"

// ReadText loads a whole caption file as text. encoding names any WHATWG
// label ("utf-8", "windows-1252", "utf-16le", ...); empty means UTF-8.
func ReadText(path, encoding string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read subtitle file: %w", err)
	}
	text, err := DecodeText(data, encoding)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return text, nil
}

// DecodeText converts raw bytes to text, failing with ErrEncoding rather
// than substituting replacement characters.
func DecodeText(data []byte, encoding string) (string, error) {
	label := strings.ToLower(strings.TrimSpace(encoding))
	if label == "" || label == "utf-8" || label == "utf8" {
		if !utf8.Valid(data) {
			return "", fmt.Errorf("%w: input is not valid UTF-8", ErrEncoding)
		}
		return strings.TrimPrefix(string(data), byteOrderMark), nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return "", fmt.Errorf("%w: unknown encoding %q", ErrEncoding, encoding)
	}
	decoded, _, err := transform.Bytes(unicode.BOMOverride(enc.NewDecoder()), data)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	// x/text decoders substitute U+FFFD for bytes they cannot map
	if strings.ContainsRune(string(decoded), utf8.RuneError) {
		return "", fmt.Errorf("%w: input is not valid %s", ErrEncoding, label)
	}
	return strings.TrimPrefix(string(decoded), byteOrderMark), nil
}

// WriteText stores text as UTF-8. Output goes to a temporary file in the
// target directory that is renamed into place, so a failed write never
// leaves a partial file behind.
func WriteText(path, text string) error {
	if !utf8.ValidString(text) {
		return fmt.Errorf("%w: output is not valid UTF-8", ErrEncoding)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := tmp.WriteString(text); err != nil {
		cleanup()
		return fmt.Errorf("failed to write subtitle file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		cleanup()
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write subtitle file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to move subtitle file into place: %w", err)
	}
	return nil
}
