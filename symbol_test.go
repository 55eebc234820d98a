package mrubyc

import "testing"

// withFreshSymbolTable swaps the process-wide symbol table out for an empty
// one for the duration of fn, then restores the original. Tests that need
// to observe the interner from an empty state (idempotency, overflow) must
// go through this rather than calling resetSymbolTable directly, since the
// real table is shared with every other test in the binary via Init's
// one-time bootstrap.
func withFreshSymbolTable(t *testing.T, search SymbolSearch, fn func()) {
	t.Helper()
	saved := symbols
	symbols = newSymbolTable(search)
	defer func() { symbols = saved }()
	fn()
}

func TestInternIdempotent(t *testing.T) {
	withFreshSymbolTable(t, SearchBTree, func() {
		a := Intern("foo")
		b := Intern("foo")
		if a != b {
			t.Fatalf("Intern(foo) returned %d then %d", a, b)
		}
		c := Intern("bar")
		if c == a {
			t.Fatalf("distinct strings got the same symbol id")
		}
		s, ok := Lookup(a)
		if !ok || s != "foo" {
			t.Fatalf("Lookup(%d) = %q, %v; want \"foo\", true", a, s, ok)
		}
	})
}

func TestInternLinearAndBTreeAgree(t *testing.T) {
	names := []string{"alpha", "beta", "gamma", "delta", "epsilon", "alpha", "zeta"}

	var linearIDs, btreeIDs []SymID
	withFreshSymbolTable(t, SearchLinear, func() {
		for _, n := range names {
			linearIDs = append(linearIDs, Intern(n))
		}
	})
	withFreshSymbolTable(t, SearchBTree, func() {
		for _, n := range names {
			btreeIDs = append(btreeIDs, Intern(n))
		}
	})

	for i := range names {
		if linearIDs[i] != btreeIDs[i] {
			t.Fatalf("name %q: linear id %d != btree id %d", names[i], linearIDs[i], btreeIDs[i])
		}
	}
}

func TestInternOverflow(t *testing.T) {
	savedMax := MaxSymbols
	MaxSymbols = 4
	defer func() { MaxSymbols = savedMax }()

	withFreshSymbolTable(t, SearchBTree, func() {
		for i := 0; i < MaxSymbols; i++ {
			if id := Intern(string(rune('a' + i))); id == SymIDInvalid {
				t.Fatalf("unexpected overflow at entry %d", i)
			}
		}
		if id := Intern("one-too-many"); id != SymIDInvalid {
			t.Fatalf("Intern past MaxSymbols = %d, want SymIDInvalid", id)
		}
	})
}

func TestLookupOutOfRange(t *testing.T) {
	withFreshSymbolTable(t, SearchBTree, func() {
		if _, ok := Lookup(SymID(999)); ok {
			t.Fatal("Lookup of an out-of-range id should report false")
		}
		if _, ok := Lookup(SymIDInvalid); ok {
			t.Fatal("Lookup(SymIDInvalid) should report false")
		}
	})
}

func TestHashSymbolDeterministic(t *testing.T) {
	if hashSymbol("abc") != hashSymbol("abc") {
		t.Fatal("hashSymbol is not deterministic")
	}
}
