package caption

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

var vttTimingRegex = regexp.MustCompile(
	`^\s*(?:(\d+):)?(\d{2}):(\d{2})\.(\d{3})\s+-->\s+(?:(\d+):)?(\d{2}):(\d{2})\.(\d{3})(.*)$`,
)

// WebVTT decoder; the format has no language tag so the caller supplies one
type WebVTTReader struct{}

// Detect checks for the mandatory WEBVTT signature.
func (WebVTTReader) Detect(text string) bool {
	text = stripBOM(text)
	if !strings.HasPrefix(text, "WEBVTT") {
		return false
	}
	rest := text[len("WEBVTT"):]
	return rest == "" || strings.ContainsAny(rest[:1], " \t\r\n")
}

func (WebVTTReader) Read(text, lang string) (*Set, error) {
	if !utf8.ValidString(text) {
		return nil, ErrInvalidText
	}
	lang = NormalizeLanguage(lang)
	set := NewSet()

	blocks := splitBlocks(stripBOM(text))
	for i, block := range blocks {
		if i == 0 && strings.HasPrefix(block.lines[0], "WEBVTT") {
			continue
		}
		first := strings.TrimSpace(block.lines[0])
		if strings.HasPrefix(first, "NOTE") ||
			strings.HasPrefix(first, "STYLE") ||
			strings.HasPrefix(first, "REGION") {
			continue
		}

		timingIdx := -1
		for j := 0; j < len(block.lines) && j < 2; j++ {
			if vttTimingRegex.MatchString(block.lines[j]) {
				timingIdx = j
				break
			}
		}
		if timingIdx < 0 {
			continue
		}

		matches := vttTimingRegex.FindStringSubmatch(block.lines[timingIdx])
		lineNum := block.start + timingIdx
		start, err := parseClock(matches[1], matches[2], matches[3], matches[4])
		if err != nil {
			return nil, fmt.Errorf("invalid start timestamp at line %d: %w", lineNum, err)
		}
		end, err := parseClock(matches[5], matches[6], matches[7], matches[8])
		if err != nil {
			return nil, fmt.Errorf("invalid end timestamp at line %d: %w", lineNum, err)
		}

		textLines := block.lines[timingIdx+1:]
		if len(textLines) == 0 {
			continue
		}
		set.AddCaption(lang, &Caption{
			Start:  start,
			End:    end,
			Nodes:  parseInlineMarkup(textLines),
			Layout: parseCueSettings(matches[9]),
		})
	}

	return set, nil
}

type textBlock struct {
	start int
	lines []string
}

// splitBlocks groups lines separated by blank lines, keeping the 1-based
// line number of each block for error messages.
func splitBlocks(text string) []textBlock {
	var (
		blocks  []textBlock
		current *textBlock
	)
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			if current != nil {
				blocks = append(blocks, *current)
				current = nil
			}
			continue
		}
		if current == nil {
			current = &textBlock{start: i + 1}
		}
		current.lines = append(current.lines, line)
	}
	if current != nil {
		blocks = append(blocks, *current)
	}
	return blocks
}

func parseCueSettings(settings string) *Layout {
	var (
		origin Point
		extent Point
		layout Layout
	)
	for _, field := range strings.Fields(settings) {
		key, val, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		// "position:10%,line-left" keeps only the length
		val, _, _ = strings.Cut(val, ",")
		switch key {
		case "position":
			origin.X = percentOnly(val)
		case "line":
			origin.Y = percentOnly(val)
		case "size":
			extent.X = percentOnly(val)
		case "align":
			layout.Align = val
		}
	}
	if origin.X.IsSet() || origin.Y.IsSet() {
		layout.Origin = &origin
	}
	if extent.X.IsSet() {
		layout.Extent = &extent
	}
	if layout.IsZero() {
		return nil
	}
	return &layout
}

func percentOnly(val string) Length {
	l, err := ParseLength(val)
	if err != nil || l.Unit != UnitPercent {
		return Length{}
	}
	return l
}
