package bencode

import (
	"bytes"
	"slices"
	"strconv"
)

type encoder struct {
	bytes.Buffer
}

func (e *encoder) writeInt(v int64) {
	e.WriteByte('i')
	e.WriteString(strconv.FormatInt(v, 10))
	e.WriteByte('e')
}

func (e *encoder) writeBytes(v []byte) {
	e.WriteString(strconv.Itoa(len(v)))
	e.WriteByte(':')
	e.Write(v)
}

type field struct {
	key   string
	write func(*encoder)
}

// writeDict emits fields in byte-lexicographic key order no matter how they
// were listed.
func (e *encoder) writeDict(fields []field) {
	slices.SortFunc(fields, func(a, b field) int {
		return bytes.Compare([]byte(a.key), []byte(b.key))
	})
	e.WriteByte('d')
	for _, f := range fields {
		e.writeBytes([]byte(f.key))
		f.write(e)
	}
	e.WriteByte('e')
}

// EncodeInfo returns the canonical encoding of an info dictionary.
func EncodeInfo(info InnerInfo) []byte {
	var e encoder
	e.writeDict([]field{
		{"pieces", func(e *encoder) { e.writeBytes(info.Pieces) }},
		{"piece length", func(e *encoder) { e.writeInt(info.PieceLength) }},
		{"name", func(e *encoder) { e.writeBytes([]byte(info.Name)) }},
		{"length", func(e *encoder) { e.writeInt(info.Length) }},
	})
	return e.Bytes()
}
