package caption

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

const sccHeader = "Scenarist_SCC V1.0"

var sccLineRegex = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})([:;.,])(\d{2})\s+(.*)$`)

// basic characters that differ from ASCII
var sccCharacters = map[byte]rune{
	0x2a: 'á', 0x5c: 'é', 0x5e: 'í', 0x5f: 'ó', 0x60: 'ú',
	0x7b: 'ç', 0x7c: '÷', 0x7d: 'Ñ', 0x7e: 'ñ', 0x7f: '█',
}

// 0x11/0x19 followed by 0x30-0x3f
var sccSpecialCharacters = []rune("®°½¿™¢£♪à èâêîôû")

// 0x12/0x1a and 0x13/0x1b followed by 0x20-0x3f; each replaces the
// standard character sent before it
var sccExtendedCharacters = map[byte][]rune{
	0x12: []rune("ÁÉÓÚÜü‘¡*’—©℠•“”ÀÂÇÈÊËëÎÏïÔÙùÛ«»"),
	0x13: []rune("ÃãÍÌìÒòÕõ{}\\^_|~ÄäÖöß¥¤¦ÅåØø┌┐└┘"),
}

// SCC (CEA-608) decoder; the format has no language tag so the caller
// supplies one
type SCCReader struct{}

// Detect checks for the Scenarist header.
func (SCCReader) Detect(text string) bool {
	for _, line := range strings.Split(stripBOM(text), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		return strings.HasPrefix(strings.TrimSpace(line), sccHeader)
	}
	return false
}

func (SCCReader) Read(text, lang string) (*Set, error) {
	if !utf8.ValidString(text) {
		return nil, ErrInvalidText
	}
	lang = NormalizeLanguage(lang)

	d := &sccDecoder{mode: sccPopOn}
	scanner := bufio.NewScanner(strings.NewReader(stripBOM(text)))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	var last time.Duration

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		lineNum++
		if line == "" || strings.HasPrefix(line, sccHeader) {
			continue
		}

		matches := sccLineRegex.FindStringSubmatch(line)
		if matches == nil {
			return nil, fmt.Errorf("invalid SCC line %d: %q", lineNum, line)
		}
		base, err := sccFrames(matches[1], matches[2], matches[3], matches[5])
		if err != nil {
			return nil, fmt.Errorf("invalid timecode at line %d: %w", lineNum, err)
		}
		dropFrame := matches[4] != ":"

		for i, word := range strings.Fields(matches[6]) {
			value, err := strconv.ParseUint(word, 16, 16)
			if err != nil || len(word) != 4 {
				return nil, fmt.Errorf("invalid SCC word %q at line %d", word, lineNum)
			}
			// every word takes one frame to transmit
			last = sccTime(base+i, dropFrame)
			d.word(byte(value>>8)&0x7f, byte(value)&0x7f, last)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading SCC text: %w", err)
	}

	set := NewSet()
	for _, c := range d.finish(last) {
		set.AddCaption(lang, c)
	}
	return set, nil
}

func sccFrames(hours, minutes, seconds, frames string) (int, error) {
	var parts [4]int
	for i, s := range []string{hours, minutes, seconds, frames} {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, err
		}
		parts[i] = v
	}
	if parts[1] > 59 || parts[2] > 59 || parts[3] > 29 {
		return 0, fmt.Errorf("timecode out of range: %s:%s:%s:%s", hours, minutes, seconds, frames)
	}
	return (parts[0]*3600+parts[1]*60+parts[2])*30 + parts[3], nil
}

// sccTime converts a 30fps frame count to wall clock time. Non-drop-frame
// timecode runs fast, each timecode second covering 1.001 real seconds.
func sccTime(frames int, dropFrame bool) time.Duration {
	seconds := float64(frames) / 30
	if !dropFrame {
		seconds *= 1.001
	}
	return time.Duration(seconds * float64(time.Second)).Round(time.Millisecond)
}

type sccMode int

const (
	sccPopOn sccMode = iota
	sccRollUp
	sccPaintOn
)

// text being composed, either off screen (pop-on) or on screen
type sccBuffer struct {
	lines   [][]rune
	start   time.Duration
	hasText bool
}

func (b *sccBuffer) write(r rune, at time.Duration) {
	if !b.hasText {
		b.start = at
		b.hasText = true
	}
	if len(b.lines) == 0 {
		b.lines = append(b.lines, nil)
	}
	b.lines[len(b.lines)-1] = append(b.lines[len(b.lines)-1], r)
}

func (b *sccBuffer) newLine() {
	if len(b.lines) > 0 && len(b.lines[len(b.lines)-1]) > 0 {
		b.lines = append(b.lines, nil)
	}
}

func (b *sccBuffer) backspace() {
	if len(b.lines) == 0 {
		return
	}
	last := b.lines[len(b.lines)-1]
	if len(last) > 0 {
		b.lines[len(b.lines)-1] = last[:len(last)-1]
	}
}

func (b *sccBuffer) reset() {
	*b = sccBuffer{}
}

func (b *sccBuffer) nodes() []Node {
	var nodes []Node
	for _, line := range b.lines {
		text := strings.TrimSpace(string(line))
		if text == "" {
			continue
		}
		if len(nodes) > 0 {
			nodes = append(nodes, BreakNode())
		}
		nodes = append(nodes, TextNode(text))
	}
	return nodes
}

type sccDecoder struct {
	mode      sccMode
	buffer    sccBuffer
	displayed *Caption
	captions  []*Caption

	// doubled control codes are sent for redundancy
	lastControl uint16
}

func (d *sccDecoder) word(b1, b2 byte, at time.Duration) {
	if b1 == 0 && b2 == 0 {
		d.lastControl = 0
		return
	}
	if b1 >= 0x10 && b1 <= 0x1f {
		code := uint16(b1)<<8 | uint16(b2)
		if code == d.lastControl {
			d.lastControl = 0
			return
		}
		d.lastControl = code
		d.control(b1, b2, at)
		return
	}
	d.lastControl = 0
	d.char(b1, at)
	d.char(b2, at)
}

func (d *sccDecoder) char(b byte, at time.Duration) {
	if b < 0x20 {
		return
	}
	if r, ok := sccCharacters[b]; ok {
		d.buffer.write(r, at)
		return
	}
	d.buffer.write(rune(b), at)
}

func (d *sccDecoder) control(b1, b2 byte, at time.Duration) {
	// channel 2 and field 2 codes mirror channel 1 with bit 3 set
	base := b1 &^ 0x08

	switch {
	case (base == 0x14 || base == 0x15) && b2 >= 0x20 && b2 <= 0x2f:
		d.misc(b2, at)
	case base == 0x11 && b2 >= 0x30 && b2 <= 0x3f:
		d.buffer.write(sccSpecialCharacters[b2-0x30], at)
	case base == 0x11 && b2 >= 0x20 && b2 <= 0x2f:
		// mid-row style change shows as a space
		d.buffer.write(' ', at)
	case (base == 0x12 || base == 0x13) && b2 >= 0x20 && b2 <= 0x3f:
		d.buffer.backspace()
		d.buffer.write(sccExtendedCharacters[base][b2-0x20], at)
	case b2 >= 0x40 && b2 <= 0x7f:
		// preamble address code: cursor moves to another row
		d.buffer.newLine()
	}
}

func (d *sccDecoder) misc(b2 byte, at time.Duration) {
	switch b2 {
	case 0x20: // RCL
		d.mode = sccPopOn
	case 0x25, 0x26, 0x27: // RU2-RU4
		if d.mode != sccRollUp {
			d.flush(at)
		}
		d.mode = sccRollUp
	case 0x29: // RDC
		if d.mode != sccPaintOn {
			d.flush(at)
		}
		d.mode = sccPaintOn
	case 0x21: // BS
		d.buffer.backspace()
	case 0x2c: // EDM
		if d.mode != sccPopOn {
			d.flush(at)
		}
		d.clearDisplay(at)
	case 0x2d: // CR
		if d.mode == sccRollUp {
			d.flush(at)
		} else {
			d.buffer.newLine()
		}
	case 0x2e: // ENM
		if d.mode == sccPopOn {
			d.buffer.reset()
		}
	case 0x2f: // EOC
		if d.buffer.hasText {
			d.clearDisplay(at)
			d.show(&Caption{Start: at, Nodes: d.buffer.nodes()})
		} else {
			d.clearDisplay(at)
		}
		d.buffer.reset()
	}
}

// flush puts on-screen text composed in roll-up or paint-on mode into a
// caption starting when its first character arrived.
func (d *sccDecoder) flush(at time.Duration) {
	if d.mode == sccPopOn || !d.buffer.hasText {
		d.buffer.reset()
		return
	}
	c := &Caption{Start: d.buffer.start, Nodes: d.buffer.nodes()}
	d.buffer.reset()
	if d.displayed != nil && d.displayed.End == 0 {
		d.displayed.End = c.Start
	}
	d.show(c)
}

func (d *sccDecoder) show(c *Caption) {
	if len(c.Nodes) == 0 {
		return
	}
	d.captions = append(d.captions, c)
	d.displayed = c
}

func (d *sccDecoder) clearDisplay(at time.Duration) {
	if d.displayed != nil && d.displayed.End == 0 {
		d.displayed.End = at
	}
	d.displayed = nil
}

func (d *sccDecoder) finish(at time.Duration) []*Caption {
	d.flush(at)
	for _, c := range d.captions {
		if c.End <= c.Start {
			c.End = c.Start + DefaultDuration
		}
	}
	return d.captions
}
