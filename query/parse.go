package query

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hupe1980/vecfs/attr"
)

const similarityFunc = "similarity"

// Parse parses query text.
func Parse(input string) (*Query, error) {
	p := &parser{in: input}
	q, err := p.query()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.errorf("unexpected trailing input")
	}
	return q, nil
}

type parser struct {
	in  string
	pos int
}

func (p *parser) eof() bool { return p.pos >= len(p.in) }

func (p *parser) rest() string { return p.in[p.pos:] }

func (p *parser) errorf(msg string) *SyntaxError {
	return &SyntaxError{Msg: msg, Remainder: p.rest()}
}

func (p *parser) skipSpace() {
	for !p.eof() {
		r, w := utf8.DecodeRuneInString(p.rest())
		if !unicode.IsSpace(r) {
			return
		}
		p.pos += w
	}
}

func (p *parser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.in[p.pos]
}

func (p *parser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return p.errorf("expected '" + string(c) + "'")
	}
	p.pos++
	return nil
}

func (p *parser) query() (*Query, error) {
	p.skipSpace()
	key := p.key()
	if key == "" {
		return nil, p.errorf("expected attribute key")
	}

	if key == similarityFunc {
		save := p.pos
		p.skipSpace()
		if p.peek() == '(' {
			return p.similarity()
		}
		p.pos = save
	}

	op, err := p.operator()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	val, err := p.value(false)
	if err != nil {
		return nil, err
	}
	return &Query{Kind: KindCompare, Key: key, Operator: op, Value: val}, nil
}

// similarity parses "(key, [vector]) op threshold"; the function name is
// already consumed.
func (p *parser) similarity() (*Query, error) {
	if err := p.expect('('); err != nil {
		return nil, err
	}
	p.skipSpace()
	key := p.key()
	if key == "" {
		return nil, p.errorf("expected attribute key")
	}
	if err := p.expect(','); err != nil {
		return nil, err
	}
	p.skipSpace()
	arg, err := p.value(true)
	if err != nil {
		return nil, err
	}
	vec, ok := arg.AsVector()
	if !ok {
		return nil, &TypeError{Func: similarityFunc, Arg: 2, Want: attr.KindVector, Got: arg.Kind}
	}
	if err := p.expect(')'); err != nil {
		return nil, err
	}

	op, err := p.operator()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	start := p.pos
	tok := p.word(false)
	threshold, perr := strconv.ParseFloat(tok, 64)
	if tok == "" || perr != nil {
		p.pos = start
		return nil, p.errorf("expected numeric threshold")
	}
	return &Query{Kind: KindSimilarity, Key: key, Operator: op, Vector: vec, Threshold: threshold}, nil
}

func isKeyRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("_.-/:", r)
}

func (p *parser) key() string {
	start := p.pos
	for !p.eof() {
		r, w := utf8.DecodeRuneInString(p.rest())
		if !isKeyRune(r) {
			break
		}
		p.pos += w
	}
	return p.in[start:p.pos]
}

func (p *parser) operator() (Operator, error) {
	p.skipSpace()
	for _, op := range []Operator{OpEqual, OpNotEqual, OpGreaterEqual, OpLessEqual, OpGreaterThan, OpLessThan} {
		if strings.HasPrefix(p.rest(), string(op)) {
			p.pos += len(op)
			return op, nil
		}
	}
	return "", p.errorf("expected operator")
}

// value parses a literal. Inside a function argument list the bare word
// stops at ',' and ')'.
func (p *parser) value(inArgs bool) (attr.Value, error) {
	switch p.peek() {
	case 0:
		return attr.Value{}, p.errorf("expected value")
	case '"':
		s, err := p.quoted()
		if err != nil {
			return attr.Value{}, err
		}
		return attr.String(s), nil
	case '[':
		v, err := p.vector()
		if err != nil {
			return attr.Value{}, err
		}
		return attr.Vector(v), nil
	}

	tok := p.word(inArgs)
	if tok == "" {
		return attr.Value{}, p.errorf("expected value")
	}
	if i, err := strconv.ParseInt(tok, 10, 64); err == nil {
		return attr.Int(i), nil
	}
	if f, err := strconv.ParseFloat(tok, 64); err == nil {
		return attr.Float(f), nil
	}
	return attr.String(tok), nil
}

// word consumes up to the next space (or argument delimiter).
func (p *parser) word(inArgs bool) string {
	start := p.pos
	for !p.eof() {
		r, w := utf8.DecodeRuneInString(p.rest())
		if unicode.IsSpace(r) || (inArgs && (r == ',' || r == ')')) {
			break
		}
		p.pos += w
	}
	return p.in[start:p.pos]
}

func (p *parser) quoted() (string, error) {
	start := p.pos
	i := p.pos + 1
	for i < len(p.in) {
		switch p.in[i] {
		case '\\':
			i += 2
			continue
		case '"':
			s, err := strconv.Unquote(p.in[start : i+1])
			if err != nil {
				return "", p.errorf("invalid string literal")
			}
			p.pos = i + 1
			return s, nil
		}
		i++
	}
	return "", p.errorf("unterminated string literal")
}

func (p *parser) vector() ([]float32, error) {
	p.pos++ // '['
	vec := []float32{}
	p.skipSpace()
	if p.peek() == ']' {
		p.pos++
		return vec, nil
	}
	for {
		p.skipSpace()
		start := p.pos
		for !p.eof() && strings.IndexByte("+-.0123456789eE", p.peek()) >= 0 {
			p.pos++
		}
		f, err := strconv.ParseFloat(p.in[start:p.pos], 32)
		if err != nil {
			p.pos = start
			return nil, p.errorf("expected number in vector")
		}
		vec = append(vec, float32(f))

		p.skipSpace()
		switch p.peek() {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return vec, nil
		default:
			return nil, p.errorf("expected ',' or ']' in vector")
		}
	}
}
