package postgres

import (
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq/oid"
)

func TestMaxPlaceholder(t *testing.T) {
	tests := []struct {
		sql  string
		want int
	}{
		{"SELECT 1", 0},
		{"SELECT $1", 1},
		{"SELECT $1, $2, $1", 2},
		{"SELECT $10 + $2", 10},
		{"SELECT '$3'", 0},
		{"SELECT 'it''s $4', $1", 1},
		{`SELECT E'\' $5', $2`, 2},
		{`SELECT "col$3" FROM t WHERE a = $1`, 1},
		{"SELECT 1 -- $9\n, $2", 2},
		{"SELECT /* $7 /* nested $8 */ */ $1", 1},
		{"SELECT $$ $4 $$, $1", 1},
		{"SELECT $fn$ body $6 $fn$, $3", 3},
		{"SELECT a$1 FROM t", 0},
		{"SELECT $", 0},
	}
	for _, tt := range tests {
		if got := maxPlaceholder(tt.sql); got != tt.want {
			t.Errorf("maxPlaceholder(%q) = %d, want %d", tt.sql, got, tt.want)
		}
	}
}

func TestBindProducesParallelArrays(t *testing.T) {
	p, err := Bind(int32(7), "Günter", []byte{0xDE, 0xAD}, nil, true)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if p.Len() != 5 {
		t.Fatalf("Len = %d, want 5", p.Len())
	}
	wantOIDs := []uint32{uint32(oid.T_int4), uint32(oid.T_text), uint32(oid.T_bytea), 0, uint32(oid.T_bool)}
	for i, want := range wantOIDs {
		if p.OIDs[i] != want {
			t.Errorf("OIDs[%d] = %d, want %d", i, p.OIDs[i], want)
		}
		if p.Formats[i] != 1 {
			t.Errorf("Formats[%d] = %d, want binary", i, p.Formats[i])
		}
	}
	if p.Values[3] != nil {
		t.Error("nil argument should bind SQL NULL")
	}
	if string(p.Values[1]) != "Günter" {
		t.Errorf("text value = %q", p.Values[1])
	}
}

func TestBindZeroArgs(t *testing.T) {
	p, err := Bind()
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 0 {
		t.Errorf("Len = %d", p.Len())
	}
	var nilParams *Params
	if nilParams.Len() != 0 {
		t.Error("nil Params should have length 0")
	}
}

func TestBindUnsupportedType(t *testing.T) {
	_, err := Bind(1, struct{}{})
	if err == nil {
		t.Fatal("expected error")
	}
	var tm *TypeMismatchError
	if !errors.As(err, &tm) {
		t.Fatalf("expected TypeMismatchError, got %T", err)
	}
	if !strings.Contains(err.Error(), "bind $2") {
		t.Errorf("error should name the parameter: %v", err)
	}
}

func TestBindArgsAcceptsParams(t *testing.T) {
	p, _ := Bind(int64(1))
	got, err := bindArgs([]any{p})
	if err != nil {
		t.Fatal(err)
	}
	if got != p {
		t.Error("a single *Params argument should be used as is")
	}
}

func TestCheckArity(t *testing.T) {
	p, _ := Bind(1)
	if err := checkArity("SELECT $1", p); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := checkArity("SELECT $1, $2", p)
	var me *MisuseError
	if !errors.As(err, &me) {
		t.Fatalf("expected MisuseError, got %v", err)
	}
	if err := checkArity("SELECT 1", nil); err != nil {
		t.Errorf("zero params: %v", err)
	}
}
