// Package literal parses the object literal notation accepted for values in dump files:
//
//	<Point x: 1, y: -2, label: "origin", visible: true, owner: <User name: "ann">>
//
// Scalars are integers, floats, booleans, nil and double quoted strings with Go escapes.
// Type names are kept but carry no meaning beyond documentation.
package literal

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrSyntax = errors.New("literal syntax error")

type Field struct {
	Name  string
	Value any
}

// Object is one <Type field: value, ...> literal with its fields in source order.
type Object struct {
	Type   string
	Fields []Field
}

// MarshalJSON renders the fields as a JSON object, keeping their order.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o.Fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Parse reads one value from the front of text and returns it with the unread remainder.
// Values are *Object, string, int64, float64, bool or nil.
func Parse(text string) (v any, rest string, err error) {
	p := &parser{src: text}
	v, err = p.value()
	if err != nil {
		return nil, text, err
	}
	return v, p.src[p.pos:], nil
}

// ToJSON converts text, which must hold exactly one value, to JSON.
func ToJSON(text string) ([]byte, error) {
	v, rest, err := Parse(strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, errors.Wrapf(ErrSyntax, "trailing text %q", rest)
	}
	return json.Marshal(v)
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return errors.Wrapf(ErrSyntax, "at %d: "+format, append([]any{p.pos}, args...)...)
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && isSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) value() (any, error) {
	p.skipSpace()
	c := p.peek()
	switch {
	case c == 0:
		return nil, p.errorf("unexpected end of input")
	case c == '<':
		return p.object()
	case c == '"':
		return p.str()
	case c == '-' || isDigit(c):
		return p.number()
	case isLetter(c):
		word := p.ident()
		switch word {
		case "true":
			return true, nil
		case "false":
			return false, nil
		case "nil", "null":
			return nil, nil
		}
		return nil, p.errorf("unknown word %q", word)
	default:
		return nil, p.errorf("unexpected %q", c)
	}
}

func (p *parser) object() (*Object, error) {
	p.pos++
	o := &Object{Type: p.typeName()}
	if o.Type == "" {
		return nil, p.errorf("missing type name")
	}
	for {
		p.skipSpace()
		if p.peek() == '>' {
			p.pos++
			return o, nil
		}
		if len(o.Fields) > 0 {
			if p.peek() != ',' {
				return nil, p.errorf("expected ',' or '>' in %s", o.Type)
			}
			p.pos++
			p.skipSpace()
		}
		name := p.ident()
		if name == "" {
			return nil, p.errorf("expected field name in %s", o.Type)
		}
		if p.peek() != ':' {
			return nil, p.errorf("expected ':' after field %s", name)
		}
		p.pos++
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		o.Fields = append(o.Fields, Field{Name: name, Value: v})
	}
}

// typeName reads a name that may be qualified with "::" or ".".
func (p *parser) typeName() string {
	start := p.pos
	for {
		if p.ident() == "" {
			break
		}
		switch {
		case strings.HasPrefix(p.src[p.pos:], "::"):
			p.pos += 2
		case p.peek() == '.':
			p.pos++
		default:
			return p.src[start:p.pos]
		}
	}
	return p.src[start:p.pos]
}

func (p *parser) ident() string {
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if !isLetter(c) && !(p.pos > start && isDigit(c)) {
			break
		}
		p.pos++
	}
	return p.src[start:p.pos]
}

func (p *parser) str() (string, error) {
	quoted, err := strconv.QuotedPrefix(p.src[p.pos:])
	if err != nil {
		return "", p.errorf("bad string")
	}
	s, err := strconv.Unquote(quoted)
	if err != nil {
		return "", p.errorf("bad string %s", quoted)
	}
	p.pos += len(quoted)
	return s, nil
}

func (p *parser) number() (any, error) {
	start := p.pos
	if p.peek() == '-' {
		p.pos++
	}
	isFloat := false
scan:
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case isDigit(c):
		case c == '.' || c == 'e' || c == 'E':
			isFloat = true
		case (c == '+' || c == '-') && (p.src[p.pos-1] == 'e' || p.src[p.pos-1] == 'E'):
		default:
			break scan
		}
		p.pos++
	}
	text := p.src[start:p.pos]
	if !isFloat {
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, p.errorf("bad integer %q", text)
		}
		return n, nil
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil, p.errorf("bad number %q", text)
	}
	return f, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
