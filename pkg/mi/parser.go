package mi

import (
	"fmt"
	"strconv"
	"strings"
)

// Prompt is the line gdb prints when it is ready for the next command.
const Prompt = "(gdb)"

// ParseLine parses a single line of MI output. It returns false for prompt and
// blank lines, which carry no record. Lines that do not follow the MI grammar
// come back as TypeOutput records carrying the raw text.
func ParseLine(line string) (Record, bool) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" || strings.TrimSpace(line) == Prompt {
		return Record{}, false
	}

	rec, err := parseRecord(line)
	if err != nil {
		return outputRecord(line), true
	}
	return rec, true
}

// ParseOutput parses a block of MI output, one record per non-prompt line.
func ParseOutput(text string) []Record {
	var recs []Record
	for _, line := range strings.Split(text, "\n") {
		if rec, ok := ParseLine(line); ok {
			recs = append(recs, rec)
		}
	}
	return recs
}

func outputRecord(line string) Record {
	return Record{
		Type:    TypeOutput,
		Stream:  "stdout",
		Raw:     line,
		Payload: Unrecognized{Text: line},
	}
}

func parseRecord(line string) (Record, error) {
	p := &parser{src: line}
	rec := Record{Stream: "stdout"}

	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if p.pos > start {
		n, err := strconv.Atoi(p.src[start:p.pos])
		if err != nil {
			return Record{}, err
		}
		rec.Token = &n
	}

	if p.eof() {
		return Record{}, fmt.Errorf("missing record prefix")
	}
	prefix := p.next()

	switch prefix {
	case '^', '*', '=', '+':
		switch prefix {
		case '^':
			rec.Type = TypeResult
		case '+':
			rec.Type = TypeStatus
		default:
			rec.Type = TypeNotify
		}
		rec.Message = p.until(',')
		if rec.Message == "" {
			return Record{}, fmt.Errorf("missing record class")
		}
		if !p.eof() {
			p.pos++ // ,
			fields, err := p.results('\x00')
			if err != nil {
				return Record{}, err
			}
			rec.Raw = fields
		}
	case '~', '@', '&':
		switch prefix {
		case '~':
			rec.Type = TypeConsole
		case '@':
			rec.Type = TypeTarget
		default:
			rec.Type = TypeLog
		}
		text, err := p.cstring()
		if err != nil {
			return Record{}, err
		}
		if !p.eof() {
			return Record{}, fmt.Errorf("trailing data after stream record")
		}
		rec.Raw = text
	default:
		return Record{}, fmt.Errorf("unknown record prefix %q", prefix)
	}

	rec.Payload = Decode(rec.Message, rec.Raw)
	return rec, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.src) }

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) next() byte {
	c := p.src[p.pos]
	p.pos++
	return c
}

func (p *parser) expect(c byte) error {
	if p.eof() || p.src[p.pos] != c {
		return fmt.Errorf("expected %q at offset %d", c, p.pos)
	}
	p.pos++
	return nil
}

// until consumes up to, not including, the first occurrence of c.
func (p *parser) until(c byte) string {
	start := p.pos
	for !p.eof() && p.src[p.pos] != c {
		p.pos++
	}
	return p.src[start:p.pos]
}

// results parses a comma separated result list ending at close, or at the end
// of input when close is zero. Repeated keys are gathered into a list.
func (p *parser) results(close byte) (map[string]any, error) {
	out := make(map[string]any)
	for {
		key, val, err := p.result()
		if err != nil {
			return nil, err
		}
		if prev, dup := out[key]; dup {
			if list, ok := prev.([]any); ok {
				out[key] = append(list, val)
			} else {
				out[key] = []any{prev, val}
			}
		} else {
			out[key] = val
		}

		if p.eof() {
			if close != 0 {
				return nil, fmt.Errorf("unterminated tuple")
			}
			return out, nil
		}
		switch c := p.next(); c {
		case ',':
		case close:
			return out, nil
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d", c, p.pos-1)
		}
	}
}

func (p *parser) result() (string, any, error) {
	start := p.pos
	for !p.eof() && p.src[p.pos] != '=' {
		switch p.src[p.pos] {
		case ',', '{', '}', '[', ']', '"':
			return "", nil, fmt.Errorf("malformed variable at offset %d", p.pos)
		}
		p.pos++
	}
	key := p.src[start:p.pos]
	if key == "" {
		return "", nil, fmt.Errorf("empty variable at offset %d", start)
	}
	if err := p.expect('='); err != nil {
		return "", nil, err
	}
	val, err := p.value()
	return key, val, err
}

func (p *parser) value() (any, error) {
	switch p.peek() {
	case '"':
		return p.cstring()
	case '{':
		p.pos++
		if p.peek() == '}' {
			p.pos++
			return map[string]any{}, nil
		}
		return p.results('}')
	case '[':
		p.pos++
		return p.list()
	default:
		return nil, fmt.Errorf("unexpected value at offset %d", p.pos)
	}
}

// list parses the body of a list. Elements are either plain values or
// results; the keys of results are dropped.
func (p *parser) list() ([]any, error) {
	out := []any{}
	if p.peek() == ']' {
		p.pos++
		return out, nil
	}
	for {
		var (
			val any
			err error
		)
		switch p.peek() {
		case '"', '{', '[':
			val, err = p.value()
		default:
			_, val, err = p.result()
		}
		if err != nil {
			return nil, err
		}
		out = append(out, val)

		if p.eof() {
			return nil, fmt.Errorf("unterminated list")
		}
		switch c := p.next(); c {
		case ',':
		case ']':
			return out, nil
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d", c, p.pos-1)
		}
	}
}

func (p *parser) cstring() (string, error) {
	if err := p.expect('"'); err != nil {
		return "", err
	}
	var b strings.Builder
	for {
		if p.eof() {
			return "", fmt.Errorf("unterminated string")
		}
		c := p.next()
		switch c {
		case '"':
			return b.String(), nil
		case '\\':
			if p.eof() {
				return "", fmt.Errorf("unterminated escape")
			}
			esc := p.next()
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case 'f':
				b.WriteByte('\f')
			case 'v':
				b.WriteByte('\v')
			case 'a':
				b.WriteByte('\a')
			case 'b':
				b.WriteByte('\b')
			case 'e':
				b.WriteByte(0x1b)
			case '0', '1', '2', '3', '4', '5', '6', '7':
				n := int(esc - '0')
				for i := 0; i < 2 && p.peek() >= '0' && p.peek() <= '7'; i++ {
					n = n*8 + int(p.next()-'0')
				}
				b.WriteByte(byte(n))
			default:
				b.WriteByte(esc)
			}
		default:
			b.WriteByte(c)
		}
	}
}
