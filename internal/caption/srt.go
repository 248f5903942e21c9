package caption

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var srtTimingRegex = regexp.MustCompile(
	`^\s*(\d+):(\d{2}):(\d{2})[,.](\d{1,3})\s*-->\s*(\d+):(\d{2}):(\d{2})[,.](\d{1,3})`,
)

// SubRip decoder; SRT carries no language so the caller supplies one
type SRTReader struct{}

// Detect checks for a numeric cue index followed by a timing line.
func (SRTReader) Detect(text string) bool {
	lines := strings.Split(stripBOM(text), "\n")
	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i+1 >= len(lines) {
		return false
	}
	if _, err := strconv.Atoi(strings.TrimSpace(lines[i])); err != nil {
		return false
	}
	return srtTimingRegex.MatchString(lines[i+1])
}

func (SRTReader) Read(text, lang string) (*Set, error) {
	if !utf8.ValidString(text) {
		return nil, ErrInvalidText
	}
	lang = NormalizeLanguage(lang)
	set := NewSet()

	var (
		current   *Caption
		textLines []string
	)
	flush := func() {
		if current != nil && len(textLines) > 0 {
			current.Nodes = parseInlineMarkup(textLines)
			set.AddCaption(lang, current)
		}
		current = nil
		textLines = nil
	}

	scanner := bufio.NewScanner(strings.NewReader(stripBOM(text)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		lineNum++

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}

		if current == nil {
			matches := srtTimingRegex.FindStringSubmatch(line)
			if len(matches) == 9 {
				start, err := parseClock(matches[1], matches[2], matches[3], matches[4])
				if err != nil {
					return nil, fmt.Errorf("invalid start timestamp at line %d: %w", lineNum, err)
				}
				end, err := parseClock(matches[5], matches[6], matches[7], matches[8])
				if err != nil {
					return nil, fmt.Errorf("invalid end timestamp at line %d: %w", lineNum, err)
				}
				current = &Caption{Start: start, End: end}
			}
			// cue indexes and stray lines before a timing line are skipped
			continue
		}

		textLines = append(textLines, line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading SRT text: %w", err)
	}

	return set, nil
}
