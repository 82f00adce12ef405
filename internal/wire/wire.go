// Package wire implements the length-prefixed request/response framing of
// spec §6: a schema-free encoding (each value carries its own kind tag)
// so the client never needs table metadata to decode a response. Framing
// and binary layout follow the same encoding/binary conventions as
// internal/rowcodec and internal/pager, the teacher's chosen style for
// fixed binary formats (tinySQL's pager/row_codec.go), adapted here to a
// network boundary instead of a page payload.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/lunarisdb/lunaris/internal/lunerr"
	"github.com/lunarisdb/lunaris/internal/value"
)

// Response payload tags (spec §6).
const (
	tagRows     = 0x00
	tagAffected = 0x01
	tagError    = 0x02
)

// ErrFrameTooLarge guards against a client-declared length big enough to
// exhaust memory before any content has even been read.
type ErrFrameTooLarge uint32

func (e ErrFrameTooLarge) Error() string {
	return fmt.Sprintf("wire: frame length %d exceeds maximum", uint32(e))
}

// MaxFrameBytes bounds a single request frame's declared length.
const MaxFrameBytes = 16 << 20

// ReadRequest reads one length-prefixed SQL request frame.
func ReadRequest(r *bufio.Reader) (string, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return "", err
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxFrameBytes {
		return "", ErrFrameTooLarge(n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// WriteRows frames a Rows result: column names followed by tagged values
// per row (spec §6's "all columns are serialised as their value kind plus
// a type tag byte").
func WriteRows(w io.Writer, columns []string, rows []value.Row) error {
	body := make([]byte, 0, 64+32*len(rows))
	body = appendU16(body, uint16(len(columns)))
	for _, name := range columns {
		body = appendVarchar(body, name)
	}
	body = appendU32(body, uint32(len(rows)))
	for _, row := range rows {
		for _, v := range row {
			body = appendWireValue(body, v)
		}
	}
	return writeFrame(w, tagRows, body)
}

// WriteAffected frames a RowCount result.
func WriteAffected(w io.Writer, count int64) error {
	body := make([]byte, 8)
	binary.LittleEndian.PutUint64(body, uint64(count))
	return writeFrame(w, tagAffected, body)
}

// WriteError frames a classified error.
func WriteError(w io.Writer, code lunerr.Code, msg string) error {
	body := make([]byte, 0, 8+len(msg))
	body = appendU16(body, uint16(code))
	body = appendU32(body, uint32(len(msg)))
	body = append(body, msg...)
	return writeFrame(w, tagError, body)
}

func writeFrame(w io.Writer, tag byte, body []byte) error {
	frame := make([]byte, 4+1+len(body))
	binary.LittleEndian.PutUint32(frame, uint32(1+len(body)))
	frame[4] = tag
	copy(frame[5:], body)
	_, err := w.Write(frame)
	return err
}

func appendWireValue(buf []byte, v value.Value) []byte {
	buf = append(buf, byte(v.Kind))
	switch v.Kind {
	case value.KindNull:
	case value.KindInteger:
		buf = appendU64(buf, uint64(v.I))
	case value.KindFloat:
		buf = appendU64(buf, math.Float64bits(v.F))
	case value.KindBoolean:
		if v.B {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	case value.KindText:
		buf = appendVarchar(buf, v.S)
	}
	return buf
}

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

func appendU64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendVarchar(buf []byte, s string) []byte {
	buf = appendU16(buf, uint16(len(s)))
	return append(buf, s...)
}
