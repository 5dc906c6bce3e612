package bencode

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"unicode/utf8"
)

type Kind uint8

const (
	KindInteger Kind = iota + 1
	KindByteString
	KindList
	KindDictionary
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindByteString:
		return "byte string"
	case KindList:
		return "list"
	case KindDictionary:
		return "dictionary"
	default:
		return "invalid"
	}
}

// Value is a decoded bencode value. Exactly one of the payload fields is
// meaningful, selected by Kind.
type Value struct {
	kind  Kind
	num   int64
	str   []byte
	list  []Value
	entry *Dict
}

func Integer(n int64) Value     { return Value{kind: KindInteger, num: n} }
func ByteString(b []byte) Value { return Value{kind: KindByteString, str: b} }
func List(items ...Value) Value { return Value{kind: KindList, list: items} }
func Dictionary(d *Dict) Value  { return Value{kind: KindDictionary, entry: d} }

func (v Value) Kind() Kind { return v.kind }

func (v Value) Int() (int64, bool) {
	return v.num, v.kind == KindInteger
}

func (v Value) Bytes() ([]byte, bool) {
	return v.str, v.kind == KindByteString
}

func (v Value) List() ([]Value, bool) {
	return v.list, v.kind == KindList
}

func (v Value) Dict() (*Dict, bool) {
	return v.entry, v.kind == KindDictionary
}

// Native converts the tree into plain Go values: int64, string, []any and
// map[string]any. Byte strings become Go strings holding the raw bytes.
func (v Value) Native() any {
	switch v.kind {
	case KindInteger:
		return v.num
	case KindByteString:
		return string(v.str)
	case KindList:
		out := make([]any, 0, len(v.list))
		for _, item := range v.list {
			out = append(out, item.Native())
		}
		return out
	case KindDictionary:
		out := make(map[string]any, v.entry.Len())
		for _, key := range v.entry.Keys() {
			item, _ := v.entry.Get(key)
			out[key] = item.Native()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON renders the value for display. Byte strings that are not
// valid UTF-8 are rendered as "hex:" followed by their lowercase hex.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.writeJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) writeJSON(buf *bytes.Buffer) error {
	switch v.kind {
	case KindInteger:
		buf.WriteString(strconv.FormatInt(v.num, 10))
	case KindByteString:
		return writeJSONString(buf, v.str)
	case KindList:
		buf.WriteByte('[')
		for i, item := range v.list {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindDictionary:
		buf.WriteByte('{')
		for i, key := range v.entry.Keys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONString(buf, []byte(key)); err != nil {
				return err
			}
			buf.WriteByte(':')
			item, _ := v.entry.Get(key)
			if err := item.writeJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		buf.WriteString("null")
	}
	return nil
}

const binaryPrefix = "hex:"

func writeJSONString(buf *bytes.Buffer, b []byte) error {
	text := string(b)
	if !utf8.Valid(b) {
		text = binaryPrefix + hex.EncodeToString(b)
	}
	encoded, err := json.Marshal(text)
	if err != nil {
		return err
	}
	buf.Write(encoded)
	return nil
}

// Dict is a bencode dictionary that remembers the order keys were first
// inserted in. Setting an existing key replaces its value in place.
type Dict struct {
	keys    []string
	entries map[string]Value
}

func NewDict() *Dict {
	return &Dict{entries: make(map[string]Value)}
}

func (d *Dict) Set(key string, value Value) {
	if _, ok := d.entries[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.entries[key] = value
}

func (d *Dict) Get(key string) (Value, bool) {
	if d == nil {
		return Value{}, false
	}
	v, ok := d.entries[key]
	return v, ok
}

func (d *Dict) Keys() []string {
	if d == nil {
		return nil
	}
	return d.keys
}

func (d *Dict) Len() int {
	if d == nil {
		return 0
	}
	return len(d.keys)
}
