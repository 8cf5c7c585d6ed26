package expr

import "testing"

// fakeResolver is a minimal Resolver for expression-only tests.
type fakeResolver struct {
	symbols map[string]int32
	undef   map[string]bool
	cur     int32
	section int32
}

func (f *fakeResolver) Lookup(name string) (int32, bool, bool) {
	if f.undef[name] {
		return 0, true, true
	}
	v, ok := f.symbols[name]
	return v, false, ok
}
func (f *fakeResolver) IsDefined(name string) bool {
	if f.undef[name] {
		return false
	}
	_, ok := f.symbols[name]
	return ok
}
func (f *fakeResolver) CurrentAddress() int32 { return f.cur }
func (f *fakeResolver) SectionStart() int32   { return f.section }
func (f *fakeResolver) ResolveTemp(n int, forward bool) (int32, bool, bool) {
	return 0, true, false
}

func TestEvaluateArithmetic(t *testing.T) {
	r := &fakeResolver{symbols: map[string]int32{}}
	tests := []struct {
		expr string
		want int32
	}{
		{"1+2*3", 7},
		{"(1+2)*3", 9},
		{"10-4-2", 4},
		{"7/2", 3},
		{"7%2", 1},
		{"1<<4", 16},
		{"$FF", 255},
		{"0FFh", 255},
		{"%1010", 10},
		{"1010b", 10},
		{"high($1234)", 0x12},
		{"low($1234)", 0x34},
		{"not(0)", 1},
		{"not(5)", 0},
		{"abs(-5)", 5},
		{"~0", -1},
		{"1==1", 1},
		{"1!=1", 0},
		{"2>1 && 1<2", 1},
		{"1 || 0", 1},
		{"'A'", 65},
		{"'AB'", 0x4142},
	}
	for _, tt := range tests {
		v, err := Evaluate(tt.expr, r)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", tt.expr, err)
		}
		if v.Undefined {
			t.Fatalf("%q: unexpectedly undefined", tt.expr)
		}
		if v.Val != tt.want {
			t.Errorf("%q = %d, want %d", tt.expr, v.Val, tt.want)
		}
	}
}

func TestEvaluateDivisionByZero(t *testing.T) {
	r := &fakeResolver{symbols: map[string]int32{}}
	if _, err := Evaluate("1/0", r); err == nil {
		t.Fatal("expected division-by-zero error")
	}
}

func TestEvaluateUndefinedPropagates(t *testing.T) {
	r := &fakeResolver{symbols: map[string]int32{}, undef: map[string]bool{"FOO": true}}
	v, err := Evaluate("FOO+1", r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.Undefined {
		t.Fatal("expected undefined result")
	}
}

func TestEvaluateDefinedIgnoresUndefined(t *testing.T) {
	r := &fakeResolver{symbols: map[string]int32{"BAR": 1}, undef: map[string]bool{"FOO": true}}
	v, err := Evaluate("defined(FOO)", r)
	if err != nil || v.Undefined || v.Val != 0 {
		t.Fatalf("defined(FOO) = %+v, err=%v, want 0", v, err)
	}
	v, err = Evaluate("defined(BAR)", r)
	if err != nil || v.Undefined || v.Val != 1 {
		t.Fatalf("defined(BAR) = %+v, err=%v, want 1", v, err)
	}
}

func TestEvaluateCurrentAddressAndSection(t *testing.T) {
	r := &fakeResolver{symbols: map[string]int32{}, cur: 0x8010, section: 0x8000}
	v, _ := Evaluate("$-$$", r)
	if v.Val != 0x10 {
		t.Errorf("$-$$ = %d, want 16", v.Val)
	}
}

func TestSymbolTableLocalLabels(t *testing.T) {
	st := NewSymbolTable()
	st.StartPass()
	qualified := st.QualifyLabel("LOOP")
	st.Define(qualified, 0x8000, SymLabel, 1, "f.a80")
	qualifiedLocal := st.QualifyLabel(".again")
	st.Define(qualifiedLocal, 0x8005, SymLabel, 2, "f.a80")
	if qualifiedLocal != "LOOP.again" {
		t.Fatalf("local label qualified as %q, want LOOP.again", qualifiedLocal)
	}
	v, undef, ok := st.Lookup(".again")
	if !ok || undef || v != 0x8005 {
		t.Fatalf("Lookup(.again) = %d undef=%v ok=%v", v, undef, ok)
	}
}

func TestSymbolTableModulePrefix(t *testing.T) {
	st := NewSymbolTable()
	st.StartPass()
	st.PushModule("GFX")
	q := st.QualifyLabel("DRAW")
	if q != "GFX.DRAW" {
		t.Fatalf("qualified = %q, want GFX.DRAW", q)
	}
	st.Define(q, 0x9000, SymLabel, 1, "f.a80")
	v, undef, ok := st.Lookup("DRAW")
	if !ok || undef || v != 0x9000 {
		t.Fatalf("Lookup(DRAW) inside module = %d undef=%v ok=%v", v, undef, ok)
	}
	st.PopModule()
	v, undef, ok = st.Lookup("@GFX.DRAW")
	if !ok || undef || v != 0x9000 {
		t.Fatalf("absolute Lookup(@GFX.DRAW) = %d undef=%v ok=%v", v, undef, ok)
	}
}

func TestSymbolTableTempLabels(t *testing.T) {
	st := NewSymbolTable()
	st.StartPass()
	st.SetCurrentAddress(0x8000)
	st.DefineTemp(1, 0x8000)
	st.SetCurrentAddress(0x8010)
	st.DefineTemp(1, 0x8010)
	v, err := Evaluate("1B", st)
	if err != nil || v.Undefined || v.Val != 0x8010 {
		t.Fatalf("1B = %+v err=%v, want 0x8010", v, err)
	}
	// Forward ref within the same pass isn't resolvable yet (falls back to
	// prior pass's list, which is empty on pass 1).
	v, err = Evaluate("1F", st)
	if err != nil || !v.Undefined {
		t.Fatalf("1F on pass 1 should be undefined, got %+v err=%v", v, err)
	}
}
