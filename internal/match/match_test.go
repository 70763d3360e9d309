package match

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ăn uống", "an uong"},
		{"an uong", "an uong"},
		{"Đi lại", "di lai"},
		{"  Hoá.. đơn!! ", "hoa don"},
		{"Ví Tiền Mặt", "vi tien mat"},
		{"MoMo", "momo"},
		{"***", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDice_Reflexive(t *testing.T) {
	for _, s := range []string{"a", "ab", "an uong", "x y z"} {
		if got := Dice(s, s); got != 1.0 {
			t.Errorf("Dice(%q, %q) = %v, want 1.0", s, s, got)
		}
	}
}

func TestDice_Multiset(t *testing.T) {
	// "aaa" has bigrams {aa, aa}, "aa" has {aa}: shared counted once.
	got := Dice("aaa", "aa")
	want := 2 * 1.0 / 3.0
	if got != want {
		t.Errorf("Dice(aaa, aa) = %v, want %v", got, want)
	}
}

func TestScore_SuperstringAtLeastPointNine(t *testing.T) {
	pairs := [][2]string{
		{"tien mat", "vi tien mat"},
		{"an", "an uong"},
		{"momo", "momo"},
	}
	for _, p := range pairs {
		if got := Score(p[0], p[1]); got < 0.9 {
			t.Errorf("Score(%q, %q) = %v, want >= 0.9", p[0], p[1], got)
		}
	}
}

func TestBest(t *testing.T) {
	candidates := []Candidate{
		{ID: 1, Name: "Ăn uống"},
		{ID: 2, Name: "Đi lại"},
		{ID: 3, Name: "Mua sắm"},
	}

	best, score, ok := Best("an uong", candidates)
	if !ok {
		t.Fatal("expected a result")
	}
	if best.ID != 1 {
		t.Errorf("expected id 1, got %d", best.ID)
	}
	if score != 1.0 {
		t.Errorf("normalized exact match should score 1.0, got %v", score)
	}

	// Misspelled query still lands on the closest candidate.
	best, score, ok = Best("an uogn", candidates)
	if !ok || best.ID != 1 {
		t.Errorf("expected id 1 for fuzzy query, got %d (ok=%v)", best.ID, ok)
	}
	if score <= 0 || score >= 1 {
		t.Errorf("fuzzy score should be in (0, 1), got %v", score)
	}

	if _, _, ok := Best("an uong", nil); ok {
		t.Error("empty candidate set should report ok=false")
	}
	if _, _, ok := Best("???", candidates); ok {
		t.Error("query normalizing to nothing should report ok=false")
	}
}
