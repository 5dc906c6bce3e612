package bencode

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
)

// DefaultMaxDepth bounds how deeply lists and dictionaries may nest.
const DefaultMaxDepth = 512

var ErrMalformed = errors.New("bencode: malformed input")

// SyntaxError describes where the input stopped matching the grammar.
type SyntaxError struct {
	Offset   int
	Expected string
	Found    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("bencode: expected %s at offset %d, found %s", e.Expected, e.Offset, e.Found)
}

func (e *SyntaxError) Is(target error) bool {
	return target == ErrMalformed
}

// Decoder parses bencoded bytes into a Value tree without recursion.
type Decoder struct {
	MaxDepth int
}

type frame struct {
	kind   Kind
	items  []Value
	dict   *Dict
	key    string
	hasKey bool
}

// Decode parses the value at the start of data and returns it together
// with the bytes that follow it.
func Decode(data []byte) (Value, []byte, error) {
	return (&Decoder{}).Decode(data)
}

// Unmarshal parses data as exactly one value. Trailing bytes are an error.
func Unmarshal(data []byte) (Value, error) {
	return (&Decoder{}).Unmarshal(data)
}

func (d *Decoder) Unmarshal(data []byte) (Value, error) {
	v, rest, err := d.Decode(data)
	if err != nil {
		return Value{}, err
	}
	if len(rest) > 0 {
		return Value{}, syntaxError(len(data)-len(rest), "end of input", rest)
	}
	return v, nil
}

func (d *Decoder) Decode(data []byte) (Value, []byte, error) {
	maxDepth := d.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var stack []*frame
	pos := 0

	for {
		if pos >= len(data) {
			if len(stack) == 0 {
				return Value{}, nil, syntaxError(pos, "a value", nil)
			}
			return Value{}, nil, syntaxError(pos, "'e' closing "+stack[len(stack)-1].kind.String(), nil)
		}

		var (
			value Value
			done  bool
		)

		var top *frame
		if len(stack) > 0 {
			top = stack[len(stack)-1]
		}

		switch c := data[pos]; {
		case top != nil && c == 'e':
			if top.kind == KindDictionary && top.hasKey {
				return Value{}, nil, syntaxError(pos, fmt.Sprintf("value for key %q", top.key), data[pos:])
			}
			stack = stack[:len(stack)-1]
			pos++
			if top.kind == KindList {
				value = List(top.items...)
			} else {
				value = Dictionary(top.dict)
			}
			done = true
		case top != nil && top.kind == KindDictionary && !top.hasKey:
			if !isDigit(c) {
				return Value{}, nil, syntaxError(pos, "byte string dictionary key", data[pos:])
			}
			key, n, err := decodeString(data, pos)
			if err != nil {
				return Value{}, nil, err
			}
			top.key, top.hasKey = string(key), true
			pos = n
		case c == 'i':
			n, next, err := decodeInteger(data, pos)
			if err != nil {
				return Value{}, nil, err
			}
			value, done, pos = Integer(n), true, next
		case isDigit(c):
			s, next, err := decodeString(data, pos)
			if err != nil {
				return Value{}, nil, err
			}
			value, done, pos = ByteString(s), true, next
		case c == 'l', c == 'd':
			if len(stack) >= maxDepth {
				return Value{}, nil, syntaxError(pos, fmt.Sprintf("nesting depth at most %d", maxDepth), data[pos:])
			}
			f := &frame{kind: KindList, items: []Value{}}
			if c == 'd' {
				f.kind, f.dict = KindDictionary, NewDict()
			}
			stack = append(stack, f)
			pos++
		default:
			return Value{}, nil, syntaxError(pos, "'i', 'l', 'd' or a digit", data[pos:])
		}

		if !done {
			continue
		}
		if len(stack) == 0 {
			return value, data[pos:], nil
		}
		parent := stack[len(stack)-1]
		if parent.kind == KindList {
			parent.items = append(parent.items, value)
		} else {
			parent.dict.Set(parent.key, value)
			parent.key, parent.hasKey = "", false
		}
	}
}

// decodeInteger parses i<digits>e starting at pos and returns the offset
// after the terminator.
func decodeInteger(data []byte, pos int) (int64, int, error) {
	end := bytes.IndexByte(data[pos+1:], 'e')
	if end == -1 {
		return 0, 0, syntaxError(len(data), "'e' terminating integer", nil)
	}
	digits := data[pos+1 : pos+1+end]
	if !validInteger(digits) {
		return 0, 0, syntaxError(pos+1, "base-10 integer", digits)
	}
	n, err := strconv.ParseInt(string(digits), 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: integer at offset %d: %v", ErrMalformed, pos+1, err)
	}
	return n, pos + 1 + end + 1, nil
}

// validInteger rejects empty digits, a leading '+', leading zeros and -0.
func validInteger(digits []byte) bool {
	body := digits
	if len(body) > 0 && body[0] == '-' {
		body = body[1:]
		if len(body) > 0 && body[0] == '0' {
			return false
		}
	}
	if len(body) == 0 {
		return false
	}
	if body[0] == '0' && len(body) > 1 {
		return false
	}
	for _, c := range body {
		if !isDigit(c) {
			return false
		}
	}
	return true
}

// decodeString parses <length>:<bytes> starting at pos. The returned bytes
// are a copy.
func decodeString(data []byte, pos int) ([]byte, int, error) {
	colon := bytes.IndexByte(data[pos:], ':')
	if colon == -1 {
		return nil, 0, syntaxError(len(data), "':' after byte string length", nil)
	}
	lengthStr := data[pos : pos+colon]
	for _, c := range lengthStr {
		if !isDigit(c) {
			return nil, 0, syntaxError(pos, "byte string length", lengthStr)
		}
	}
	length, err := strconv.Atoi(string(lengthStr))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: byte string length at offset %d: %v", ErrMalformed, pos, err)
	}

	start := pos + colon + 1
	if length > len(data)-start {
		return nil, 0, &SyntaxError{
			Offset:   start,
			Expected: fmt.Sprintf("%d bytes of string", length),
			Found:    fmt.Sprintf("%d bytes", len(data)-start),
		}
	}
	out := make([]byte, length)
	copy(out, data[start:start+length])
	return out, start + length, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func syntaxError(offset int, expected string, found []byte) *SyntaxError {
	return &SyntaxError{Offset: offset, Expected: expected, Found: describe(found)}
}

func describe(found []byte) string {
	if len(found) == 0 {
		return "end of input"
	}
	const maxShown = 16
	if len(found) > maxShown {
		return strconv.Quote(string(found[:maxShown])) + "..."
	}
	return strconv.Quote(string(found))
}
