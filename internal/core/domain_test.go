package core

import "testing"

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-03-05")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.ISO() != "2025-03-05" {
		t.Errorf("round trip: got %s", d.ISO())
	}

	for _, bad := range []string{"", "2025-3-5", "05/03/2025", "2025-03-05T00:00:00Z"} {
		if _, err := ParseDate(bad); err == nil {
			t.Errorf("ParseDate(%q) should fail", bad)
		}
	}
}

func TestDateInRange(t *testing.T) {
	start := NewDate(2025, 3, 1)
	end := NewDate(2025, 4, 1)

	tests := []struct {
		d    Date
		want bool
	}{
		{NewDate(2025, 3, 1), true},   // start is included
		{NewDate(2025, 3, 31), true},  // last day inside
		{NewDate(2025, 4, 1), false},  // exclusive end
		{NewDate(2025, 2, 28), false}, // before start
	}
	for _, tt := range tests {
		if got := tt.d.InRange(start, end); got != tt.want {
			t.Errorf("%s in [%s, %s) = %v, want %v", tt.d.ISO(), start.ISO(), end.ISO(), got, tt.want)
		}
	}
}

func TestCategoryVisibleTo(t *testing.T) {
	owner := int64(7)
	global := Category{ID: 1, Name: "Ăn uống", Type: Expense}
	private := Category{ID: 2, Name: "Câu cá", Type: Expense, UserID: &owner}

	if !global.VisibleTo(42) {
		t.Error("global category should be visible to any user")
	}
	if !private.VisibleTo(7) {
		t.Error("private category should be visible to its owner")
	}
	if private.VisibleTo(42) {
		t.Error("private category should not be visible to other users")
	}
}

func TestCategoryValidate(t *testing.T) {
	if err := (Category{Name: "Đi lại", Type: Expense}).Validate(); err != nil {
		t.Errorf("valid category rejected: %v", err)
	}
	if err := (Category{Name: " ", Type: Expense}).Validate(); err == nil {
		t.Error("blank name should fail")
	}
	if err := (Category{Name: "x", Type: "other"}).Validate(); err == nil {
		t.Error("unknown type should fail")
	}
}
