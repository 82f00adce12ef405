// Package rowcodec implements the row serialization format of spec §3,
// §4.2: a null bitmap followed by fixed-size payloads in column order. It
// is grounded in tinySQL's pager/row_codec.go tag-based approach but uses
// a null-bitmap-plus-positional-fields layout instead of per-value type
// tags, since Lunaris's schema is known to the decoder ahead of time.
package rowcodec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/lunarisdb/lunaris/internal/value"
)

// ErrSchemaMismatch is returned by Encode when the row doesn't match the
// schema in column count or value kind.
type ErrSchemaMismatch string

func (e ErrSchemaMismatch) Error() string { return fmt.Sprintf("rowcodec: schema mismatch: %s", string(e)) }

// ErrValueTooLong is returned by Encode when a VARCHAR value exceeds its
// declared maximum byte length.
type ErrValueTooLong struct {
	Column string
	Length int
	Max    int
}

func (e ErrValueTooLong) Error() string {
	return fmt.Sprintf("rowcodec: column %s: value of %d bytes exceeds VARCHAR(%d)", e.Column, e.Length, e.Max)
}

// ErrCorruptRow is returned by Decode when the byte slice doesn't cleanly
// decode against the schema (e.g. an unconsumed tail).
type ErrCorruptRow string

func (e ErrCorruptRow) Error() string { return fmt.Sprintf("rowcodec: corrupt row: %s", string(e)) }

func bitmapSize(ncols int) int { return (ncols + 7) / 8 }

// Encode serializes row against schema. Re-encoding a row produced by
// Decode yields identical bytes (spec §4.2 determinism requirement).
func Encode(schema value.Schema, row value.Row) ([]byte, error) {
	if len(row) != len(schema.Columns) {
		return nil, ErrSchemaMismatch(fmt.Sprintf("row has %d values, schema has %d columns", len(row), len(schema.Columns)))
	}

	nbm := bitmapSize(len(schema.Columns))
	out := make([]byte, nbm)

	for i, col := range schema.Columns {
		v := row[i]
		if !value.KindCompatible(v, col.Type) {
			return nil, ErrSchemaMismatch(fmt.Sprintf("column %s: value kind %s incompatible with declared type %s", col.Name, v.Kind, col.Type))
		}
		if v.IsNull() {
			out[i/8] |= 1 << uint(i%8)
			continue
		}
		switch col.Type {
		case value.TypeInteger:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], uint64(v.I))
			out = append(out, b[:]...)
		case value.TypeFloat:
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(v.F))
			out = append(out, b[:]...)
		case value.TypeBoolean:
			if v.B {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		case value.TypeVarchar:
			s := []byte(v.S)
			if len(s) > col.VarcharMax {
				return nil, ErrValueTooLong{Column: col.Name, Length: len(s), Max: col.VarcharMax}
			}
			var lb [2]byte
			binary.LittleEndian.PutUint16(lb[:], uint16(len(s)))
			out = append(out, lb[:]...)
			out = append(out, s...)
		}
	}
	return out, nil
}

// Decode is the inverse of Encode. An unconsumed tail is a corrupt row.
func Decode(schema value.Schema, buf []byte) (value.Row, error) {
	nbm := bitmapSize(len(schema.Columns))
	if len(buf) < nbm {
		return nil, ErrCorruptRow("buffer shorter than null bitmap")
	}
	bitmap := buf[:nbm]
	off := nbm

	row := make(value.Row, len(schema.Columns))
	for i, col := range schema.Columns {
		if bitmap[i/8]&(1<<uint(i%8)) != 0 {
			row[i] = value.Null()
			continue
		}
		switch col.Type {
		case value.TypeInteger:
			if off+8 > len(buf) {
				return nil, ErrCorruptRow("truncated INTEGER")
			}
			row[i] = value.Integer(int64(binary.LittleEndian.Uint64(buf[off:])))
			off += 8
		case value.TypeFloat:
			if off+8 > len(buf) {
				return nil, ErrCorruptRow("truncated FLOAT")
			}
			row[i] = value.Float(math.Float64frombits(binary.LittleEndian.Uint64(buf[off:])))
			off += 8
		case value.TypeBoolean:
			if off+1 > len(buf) {
				return nil, ErrCorruptRow("truncated BOOLEAN")
			}
			row[i] = value.Boolean(buf[off] != 0)
			off++
		case value.TypeVarchar:
			if off+2 > len(buf) {
				return nil, ErrCorruptRow("truncated VARCHAR length")
			}
			l := int(binary.LittleEndian.Uint16(buf[off:]))
			off += 2
			if off+l > len(buf) {
				return nil, ErrCorruptRow("truncated VARCHAR payload")
			}
			row[i] = value.Text(string(buf[off : off+l]))
			off += l
		}
	}
	if off != len(buf) {
		return nil, ErrCorruptRow(fmt.Sprintf("%d unconsumed trailing bytes", len(buf)-off))
	}
	return row, nil
}
