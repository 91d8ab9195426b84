// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package reflectsig

import "testing"

func TestByNameFindsBinding(t *testing.T) {
	sig := &Signature{
		Bindings: []Binding{
			{Set: 0, Nr: 0, Name: "uScene"},
			{Set: 0, Nr: 1, Name: "uMaterial"},
		},
		byName: map[string]int{"uScene": 0, "uMaterial": 1},
	}
	b, ok := sig.ByName("uMaterial")
	if !ok || b.Nr != 1 {
		t.Fatalf("ByName(uMaterial) = %v, %v, want Nr=1, true", b, ok)
	}
}

func TestByNameMissing(t *testing.T) {
	sig := &Signature{byName: map[string]int{}}
	if _, ok := sig.ByName("nope"); ok {
		t.Fatal("ByName of an unknown name must report false")
	}
}
