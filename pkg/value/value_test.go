package value

import (
	"math"
	"testing"

	"github.com/chazu/modl/pkg/fault"
)

func catch(fn func()) (err error) {
	defer fault.Catch(&err)
	fn()
	return nil
}

func TestPlainValues(t *testing.T) {
	if !NilValue().IsNil() {
		t.Error("NilValue should be nil")
	}
	if var0 := (Value{}); var0.Type() != Nil {
		t.Error("zero Value should be nil")
	}
	if !Bool(true).AsBool() || Bool(false).AsBool() {
		t.Error("Bool payload mismatch")
	}
	if Int(-42).AsInt() != -42 {
		t.Errorf("Int payload = %d", Int(-42).AsInt())
	}
	if Float(2.5).AsFloat() != 2.5 {
		t.Errorf("Float payload = %v", Float(2.5).AsFloat())
	}
	if Str("hi").AsString() != "hi" {
		t.Errorf("Str payload = %q", Str("hi").AsString())
	}
}

func TestRefCounting(t *testing.T) {
	s := Str("owned")
	if !s.IsTmp() {
		t.Fatal("new string should be temporary")
	}
	s.Take()
	if s.IsTmp() || !s.IsSingle() {
		t.Fatalf("count = %d, want 1", s.RefCount())
	}
	s.Take()
	if s.Release() {
		t.Fatal("release with another owner must not free")
	}
	if !s.Release() {
		t.Fatal("last release must free")
	}
	if !s.IsFreed() {
		t.Error("cell should be marked freed")
	}
}

func TestReleaseTmp(t *testing.T) {
	tmp := Str("tmp")
	if !tmp.ReleaseTmp() {
		t.Error("unclaimed value should be freed")
	}

	kept := Str("kept").Take()
	if kept.ReleaseTmp() {
		t.Error("claimed value must survive ReleaseTmp")
	}
	if kept.RefCount() != 1 {
		t.Errorf("count = %d, want 1", kept.RefCount())
	}
}

func TestDisownNegativeFaults(t *testing.T) {
	err := catch(func() { Str("x").Disown() })
	if !fault.Is(err, fault.RefCount) {
		t.Fatalf("got %v, want refcount fault", err)
	}
}

func TestPlainValuesIgnoreCounting(t *testing.T) {
	v := Int(3)
	v.Take()
	v.Disown()
	v.Disown()
	if v.RefCount() != 1 || !v.IsTmp() || !v.IsSingle() {
		t.Error("plain values are always single and temporary")
	}
}

func TestReleaseTableReleasesChildren(t *testing.T) {
	child := Str("child")
	tbl := NewTable().Take()
	Insert(tbl, Int(0), child)
	if child.RefCount() != 1 {
		t.Fatalf("child count = %d, want 1", child.RefCount())
	}
	tbl.Release()
	if !child.IsFreed() {
		t.Error("child should be freed with its table")
	}
}

func TestEquals(t *testing.T) {
	env := NewEnvironment(nil).Retain()
	defer env.Release()
	f1 := InternalFunction(16, env)
	f2 := InternalFunction(16, env)
	tbl := NewTable()

	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"nil", NilValue(), NilValue(), true},
		{"bool", Bool(true), Bool(true), true},
		{"bool differs", Bool(true), Bool(false), false},
		{"int", Int(5), Int(5), true},
		{"int vs float", Int(5), Float(5), false},
		{"float", Float(1.5), Float(1.5), true},
		{"string", Str("abc"), Str("abc"), true},
		{"string differs", Str("abc"), Str("abd"), false},
		{"function fields", f1, f2, true},
		{"function position", f1, InternalFunction(17, env), false},
		{"table self", tbl, tbl, false},
	}
	for _, tt := range tests {
		if got := Equals(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: Equals = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b Value
		want int
	}{
		{Int(1), Int(2), -1},
		{Int(2), Int(2), 0},
		{Int(3), Int(2), 1},
		{Float(0.5), Float(0.25), 1},
		{Str("a"), Str("b"), -1},
		{Int(1), Float(1), -1},
		{NilValue(), NilValue(), 0},
	}
	for _, tt := range tests {
		if got := Compare(tt.a, tt.b); got != tt.want {
			t.Errorf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCast(t *testing.T) {
	f := Cast(Int(7), Floating)
	if f.Type() != Floating || f.AsFloat() != 7 {
		t.Errorf("Cast = %v, want 7.0", f)
	}
	if same := Cast(Str("s"), String); same.AsString() != "s" {
		t.Error("identity cast should return the value")
	}
	err := catch(func() { Cast(Float(1), Integer) })
	if !fault.Is(err, fault.Cast) {
		t.Errorf("got %v, want cast fault", err)
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{NilValue(), false},
		{Bool(false), false},
		{Bool(true), true},
		{Int(0), false},
		{Int(-1), true},
		{Float(0), false},
		{Float(0.1), true},
		{Str(""), true},
		{NewTable(), true},
	}
	for _, tt := range tests {
		if got := Truthy(tt.v); got != tt.want {
			t.Errorf("Truthy(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}
}

func TestDisplay(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NilValue(), "nil"},
		{Bool(true), "true"},
		{Int(42), "42"},
		{Float(0.5), "0.5"},
		{Str("x"), `"x"`},
		{NewTable(), "[ ... ]"},
		{ExternalFunction(3), "&ext:3"},
	}
	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestHash(t *testing.T) {
	if Hash(NilValue()) != 0 {
		t.Error("nil hash should be 0")
	}
	if Hash(Bool(true)) != 2 || Hash(Bool(false)) != 1 {
		t.Error("bool hash should be 1+b")
	}
	if Hash(Int(1<<32+5)) != 5 {
		t.Errorf("int hash = %d, want 5", Hash(Int(1<<32+5)))
	}
	if Hash(Float(3.9)) != 3 {
		t.Errorf("float hash = %d, want 3", Hash(Float(3.9)))
	}
	if Hash(Float(math.NaN())) != Hash(Float(math.NaN())) {
		t.Error("NaN hash should be stable")
	}
	if Hash(Str("")) != 0 {
		t.Error("empty string hash should be 0")
	}
	if Hash(Str("modl")) != Hash(Str("modl")) {
		t.Error("string hash should depend only on content")
	}
	if Hash(Str("modl")) == Hash(Str("modm")) {
		t.Error("adjacent strings should hash apart")
	}
	if Hash(ExternalFunction(4)) != 1<<31^4 {
		t.Errorf("function hash = %x", Hash(ExternalFunction(4)))
	}
}

func TestFunctionRetainsContext(t *testing.T) {
	env := NewEnvironment(nil).Retain()
	fn := InternalFunction(0, env).Take()
	if env.Refs() != 2 {
		t.Fatalf("env refs = %d, want 2", env.Refs())
	}
	fn.Release()
	if env.Refs() != 1 {
		t.Errorf("env refs = %d, want 1 after closure freed", env.Refs())
	}
	env.Release()
}
