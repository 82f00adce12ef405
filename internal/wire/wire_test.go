package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/lunarisdb/lunaris/internal/lunerr"
	"github.com/lunarisdb/lunaris/internal/value"
)

func TestReadRequestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	sql := "SELECT * FROM t;"
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(sql)))
	buf.Write(lenBuf[:])
	buf.WriteString(sql)

	got, err := ReadRequest(bufio.NewReader(&buf))
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if got != sql {
		t.Fatalf("got %q, want %q", got, sql)
	}
}

func TestReadRequestRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], MaxFrameBytes+1)
	buf.Write(lenBuf[:])

	if _, err := ReadRequest(bufio.NewReader(&buf)); err == nil {
		t.Fatalf("want error for oversized frame, got nil")
	}
}

func TestWriteRowsFrameShape(t *testing.T) {
	var buf bytes.Buffer
	rows := []value.Row{
		{value.Integer(1), value.Text("alice")},
		{value.Integer(2), value.Null()},
	}
	if err := WriteRows(&buf, []string{"id", "name"}, rows); err != nil {
		t.Fatalf("WriteRows: %v", err)
	}

	frameLen := binary.LittleEndian.Uint32(buf.Bytes()[:4])
	payload := buf.Bytes()[4 : 4+frameLen]
	if payload[0] != tagRows {
		t.Fatalf("tag = %x, want tagRows", payload[0])
	}

	colCount := binary.LittleEndian.Uint16(payload[1:3])
	if colCount != 2 {
		t.Fatalf("column count = %d, want 2", colCount)
	}

	off := 3
	for _, want := range []string{"id", "name"} {
		l := int(binary.LittleEndian.Uint16(payload[off:]))
		off += 2
		if string(payload[off:off+l]) != want {
			t.Fatalf("column name = %q, want %q", payload[off:off+l], want)
		}
		off += l
	}

	rowCount := binary.LittleEndian.Uint32(payload[off:])
	off += 4
	if rowCount != 2 {
		t.Fatalf("row count = %d, want 2", rowCount)
	}

	// First row: Integer(1), Text("alice").
	if payload[off] != byte(value.KindInteger) {
		t.Fatalf("tag = %d, want KindInteger", payload[off])
	}
	off++
	if binary.LittleEndian.Uint64(payload[off:]) != 1 {
		t.Fatalf("integer value wrong")
	}
	off += 8
	if payload[off] != byte(value.KindText) {
		t.Fatalf("tag = %d, want KindText", payload[off])
	}
	off++
	l := int(binary.LittleEndian.Uint16(payload[off:]))
	off += 2
	if string(payload[off:off+l]) != "alice" {
		t.Fatalf("text value = %q, want alice", payload[off:off+l])
	}
	off += l

	// Second row: Integer(2), Null.
	off++  // skip KindInteger tag
	off += 8
	if payload[off] != byte(value.KindNull) {
		t.Fatalf("tag = %d, want KindNull", payload[off])
	}
}

func TestWriteAffected(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteAffected(&buf, 42); err != nil {
		t.Fatalf("WriteAffected: %v", err)
	}
	frameLen := binary.LittleEndian.Uint32(buf.Bytes()[:4])
	payload := buf.Bytes()[4 : 4+frameLen]
	if payload[0] != tagAffected {
		t.Fatalf("tag = %x, want tagAffected", payload[0])
	}
	if binary.LittleEndian.Uint64(payload[1:]) != 42 {
		t.Fatalf("affected count wrong")
	}
}

func TestWriteError(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteError(&buf, lunerr.CodeUnknownTable, "no such table"); err != nil {
		t.Fatalf("WriteError: %v", err)
	}
	frameLen := binary.LittleEndian.Uint32(buf.Bytes()[:4])
	payload := buf.Bytes()[4 : 4+frameLen]
	if payload[0] != tagError {
		t.Fatalf("tag = %x, want tagError", payload[0])
	}
	code := binary.LittleEndian.Uint16(payload[1:3])
	if lunerr.Code(code) != lunerr.CodeUnknownTable {
		t.Fatalf("code = %d, want CodeUnknownTable", code)
	}
	msgLen := binary.LittleEndian.Uint32(payload[3:7])
	if string(payload[7:7+msgLen]) != "no such table" {
		t.Fatalf("message = %q", payload[7:7+msgLen])
	}
}
