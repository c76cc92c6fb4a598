package value

import "testing"

type fakeObj struct{ tag byte }

func (f *fakeObj) ObjKind() byte { return f.tag }

func TestTruthy(t *testing.T) {
	cases := []struct {
		v    Value
		want bool
	}{
		{Nil, false},
		{False, false},
		{True, true},
		{NumberVal(0), true},
		{NumberVal(-1), true},
		{ObjVal(&fakeObj{}), true},
	}
	for _, c := range cases {
		if got := c.v.Truthy(); got != c.want {
			t.Errorf("Truthy(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestEqual(t *testing.T) {
	a := &fakeObj{tag: 1}
	b := &fakeObj{tag: 1}
	cases := []struct {
		name string
		a, b Value
		want bool
	}{
		{"nil==nil", Nil, Nil, true},
		{"true==true", True, True, true},
		{"true!=false", True, False, false},
		{"number equal", NumberVal(3.5), NumberVal(3.5), true},
		{"number differ", NumberVal(3.5), NumberVal(3.6), false},
		{"mixed kinds never equal", NumberVal(0), Nil, false},
		{"objects identical pointer", ObjVal(a), ObjVal(a), true},
		{"objects distinct pointer same fields", ObjVal(a), ObjVal(b), false},
	}
	for _, c := range cases {
		if got := Equal(c.a, c.b); got != c.want {
			t.Errorf("%s: Equal() = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestIsInteger(t *testing.T) {
	cases := []struct {
		n    float64
		want bool
	}{
		{0, true},
		{1, true},
		{-3, true},
		{3.5, false},
		{1e300, true},
	}
	for _, c := range cases {
		if got := IsInteger(c.n); got != c.want {
			t.Errorf("IsInteger(%v) = %v, want %v", c.n, got, c.want)
		}
	}
}

func TestAccessorsRoundTrip(t *testing.T) {
	if !NumberVal(42).IsNumber() || NumberVal(42).AsNumber() != 42 {
		t.Error("NumberVal round-trip failed")
	}
	if !BoolVal(true).IsBool() || !BoolVal(true).AsBool() {
		t.Error("BoolVal(true) round-trip failed")
	}
	if !BoolVal(false).IsBool() || BoolVal(false).AsBool() {
		t.Error("BoolVal(false) round-trip failed")
	}
	o := &fakeObj{tag: 7}
	v := ObjVal(o)
	if !v.IsObject() || v.AsObject().ObjKind() != 7 {
		t.Error("ObjVal round-trip failed")
	}
}
