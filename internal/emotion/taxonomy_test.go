package emotion

import "testing"

func TestAllCodesHaveProfiles(t *testing.T) {
	if len(All) != 16 {
		t.Fatalf("expected 16 codes, got %d", len(All))
	}
	for _, code := range All {
		p, ok := Lookup(code)
		if !ok {
			t.Errorf("code %s missing from matrix", code)
			continue
		}
		if p.Name == "" || p.Tone == "" || p.Example == "" {
			t.Errorf("code %s has incomplete profile: %+v", code, p)
		}
	}
}

func TestValid(t *testing.T) {
	for _, code := range All {
		if !Valid(code) {
			t.Errorf("expected %s to be valid", code)
		}
	}
	for _, bad := range []Code{"", "XX", "ap", "NTX"} {
		if Valid(bad) {
			t.Errorf("expected %q to be invalid", bad)
		}
	}
}

func TestPriorityValue(t *testing.T) {
	cases := []struct {
		code Code
		want float64
	}{
		{Anxiety, 3},
		{Loneliness, 3},
		{Mindfulness, 3},
		{Sadness, 2},
		{Neutral, 1},
		{Burnout, 1},
		{"XX", 1},
	}
	for _, tc := range cases {
		if got := PriorityValue(tc.code); got != tc.want {
			t.Errorf("PriorityValue(%s) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestCriticalSubset(t *testing.T) {
	want := map[Code]bool{Anxiety: true, Loneliness: true, Mindfulness: true}
	for _, code := range All {
		if Critical(code) != want[code] {
			t.Errorf("Critical(%s) = %v, want %v", code, Critical(code), want[code])
		}
	}
}

func TestNameFallsBackToRawCode(t *testing.T) {
	if got := Name(Anxiety); got != "Anxiety/Panic" {
		t.Errorf("Name(AP) = %q", got)
	}
	if got := Name("ZZ"); got != "ZZ" {
		t.Errorf("Name(ZZ) = %q", got)
	}
}
