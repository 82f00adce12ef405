package rowcodec

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/lunarisdb/lunaris/internal/value"
)

func testSchema() value.Schema {
	return value.Schema{Columns: []value.Column{
		{Name: "id", Type: value.TypeInteger, Ordinal: 0},
		{Name: "score", Type: value.TypeFloat, Ordinal: 1},
		{Name: "active", Type: value.TypeBoolean, Ordinal: 2},
		{Name: "name", Type: value.TypeVarchar, VarcharMax: 8, Ordinal: 3},
	}}
}

func TestRoundTrip(t *testing.T) {
	schema := testSchema()
	cases := []value.Row{
		{value.Integer(1), value.Float(2.5), value.Boolean(true), value.Text("ab")},
		{value.Null(), value.Null(), value.Null(), value.Null()},
		{value.Integer(-7), value.Float(0), value.Boolean(false), value.Text("")},
		{value.Integer(42), value.Null(), value.Boolean(true), value.Text("12345678")},
	}
	for i, row := range cases {
		enc, err := Encode(schema, row)
		if err != nil {
			t.Fatalf("case %d: Encode: %v", i, err)
		}
		dec, err := Decode(schema, enc)
		if err != nil {
			t.Fatalf("case %d: Decode: %v", i, err)
		}
		for j := range row {
			if !sameValue(row[j], dec[j]) {
				t.Fatalf("case %d col %d: got %+v, want %+v", i, j, dec[j], row[j])
			}
		}
		reenc, err := Encode(schema, dec)
		if err != nil {
			t.Fatalf("case %d: re-Encode: %v", i, err)
		}
		if !bytes.Equal(enc, reenc) {
			t.Fatalf("case %d: re-encoding produced different bytes", i)
		}
	}
}

func sameValue(a, b value.Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case value.KindNull:
		return true
	case value.KindInteger:
		return a.I == b.I
	case value.KindFloat:
		return a.F == b.F
	case value.KindBoolean:
		return a.B == b.B
	case value.KindText:
		return a.S == b.S
	}
	return false
}

func TestRandomRoundTrip(t *testing.T) {
	schema := testSchema()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		row := value.Row{
			randIntegerOrNull(rng),
			randFloatOrNull(rng),
			randBoolOrNull(rng),
			randTextOrNull(rng, 8),
		}
		enc, err := Encode(schema, row)
		if err != nil {
			t.Fatalf("iter %d: Encode: %v", i, err)
		}
		dec, err := Decode(schema, enc)
		if err != nil {
			t.Fatalf("iter %d: Decode: %v", i, err)
		}
		for j := range row {
			if !sameValue(row[j], dec[j]) {
				t.Fatalf("iter %d col %d: got %+v, want %+v", i, j, dec[j], row[j])
			}
		}
	}
}

func randIntegerOrNull(r *rand.Rand) value.Value {
	if r.Intn(5) == 0 {
		return value.Null()
	}
	return value.Integer(r.Int63())
}

func randFloatOrNull(r *rand.Rand) value.Value {
	if r.Intn(5) == 0 {
		return value.Null()
	}
	return value.Float(r.Float64())
}

func randBoolOrNull(r *rand.Rand) value.Value {
	if r.Intn(5) == 0 {
		return value.Null()
	}
	return value.Boolean(r.Intn(2) == 0)
}

func randTextOrNull(r *rand.Rand, max int) value.Value {
	if r.Intn(5) == 0 {
		return value.Null()
	}
	n := r.Intn(max + 1)
	b := make([]byte, n)
	for i := range b {
		b[i] = byte('a' + r.Intn(26))
	}
	return value.Text(string(b))
}

func TestSchemaMismatchColumnCount(t *testing.T) {
	schema := testSchema()
	_, err := Encode(schema, value.Row{value.Integer(1)})
	if _, ok := err.(ErrSchemaMismatch); !ok {
		t.Fatalf("Encode with wrong column count: got %v, want ErrSchemaMismatch", err)
	}
}

func TestSchemaMismatchKind(t *testing.T) {
	schema := testSchema()
	row := value.Row{value.Text("nope"), value.Float(1), value.Boolean(true), value.Text("x")}
	_, err := Encode(schema, row)
	if _, ok := err.(ErrSchemaMismatch); !ok {
		t.Fatalf("Encode with wrong kind: got %v, want ErrSchemaMismatch", err)
	}
}

func TestValueTooLong(t *testing.T) {
	schema := testSchema()
	row := value.Row{value.Integer(1), value.Float(1), value.Boolean(true), value.Text("too_long_string")}
	_, err := Encode(schema, row)
	if _, ok := err.(ErrValueTooLong); !ok {
		t.Fatalf("Encode with oversized VARCHAR: got %v, want ErrValueTooLong", err)
	}
}

func TestCorruptRowUnconsumedTail(t *testing.T) {
	schema := testSchema()
	row := value.Row{value.Integer(1), value.Float(1), value.Boolean(true), value.Text("ok")}
	enc, err := Encode(schema, row)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, err = Decode(schema, append(enc, 0xFF))
	if _, ok := err.(ErrCorruptRow); !ok {
		t.Fatalf("Decode with trailing byte: got %v, want ErrCorruptRow", err)
	}
}
