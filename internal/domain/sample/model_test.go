package sample

import "testing"

func TestTypeRank(t *testing.T) {
	cases := []struct {
		typ  string
		want int
	}{
		{"AG", 0},
		{"Proctor", 1},
		{"CBR", 2},
		{"Oedometre", 3},
		{"Cisaillement", 4},
		{"Triaxial", 99},
		{"", 99},
	}
	for _, tc := range cases {
		if got := TypeRank(tc.typ); got != tc.want {
			t.Errorf("TypeRank(%q) = %d, want %d", tc.typ, got, tc.want)
		}
	}
}

func TestSectionForType(t *testing.T) {
	for _, typ := range []string{"AG", "Proctor", "CBR"} {
		if got := SectionForType(typ); got != SectionRoute {
			t.Errorf("SectionForType(%q) = %q, want route", typ, got)
		}
	}
	for _, typ := range []string{"Oedometre", "Cisaillement"} {
		if got := SectionForType(typ); got != SectionMecanique {
			t.Errorf("SectionForType(%q) = %q, want mecanique", typ, got)
		}
	}
}

func TestKnownType(t *testing.T) {
	if !KnownType("Proctor") {
		t.Error("Proctor should be known")
	}
	if KnownType("Triaxial") {
		t.Error("Triaxial should not be known")
	}
}
