package core

import (
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate(" 2025-02-01 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.String() != "2025-02-01" {
		t.Fatalf("expected 2025-02-01, got %s", d)
	}
	if _, err := ParseDate("01/02/2025"); err == nil {
		t.Fatalf("expected error for non ISO date")
	}
}

func TestDateHelpers(t *testing.T) {
	d := NewDate(2025, 2, 28)
	if got := d.AddDays(1).String(); got != "2025-03-01" {
		t.Errorf("AddDays(1) = %s, want 2025-03-01", got)
	}
	if got := d.MonthStart().String(); got != "2025-02-01" {
		t.Errorf("MonthStart() = %s, want 2025-02-01", got)
	}
	local := time.Date(2025, 3, 15, 23, 30, 0, 0, time.FixedZone("X", 3600))
	if got := DateOf(local).String(); got != "2025-03-15" {
		t.Errorf("DateOf() = %s, want 2025-03-15", got)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err == nil {
		t.Fatalf("expected error for zero")
	}
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Date:     NewDate(2025, 1, 1),
		Amount:   Money{Cents: 100},
		Category: "Food",
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []Transaction{
		{Date: Date{Time: time.Time{}}, Amount: Money{Cents: 1}, Category: "c"}, // zero date
		{Date: NewDate(2025, 1, 1), Amount: Money{Cents: 0}, Category: "c"},
		{Date: NewDate(2025, 1, 1), Amount: Money{Cents: 1}, Category: "  "},
	}
	for i, tx := range bads {
		if err := tx.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestValidateRange(t *testing.T) {
	if err := ValidateRange(NewDate(2025, 1, 1), NewDate(2025, 1, 1)); err != nil {
		t.Fatalf("same day range should be valid: %v", err)
	}
	if err := ValidateRange(NewDate(2025, 2, 1), NewDate(2025, 1, 1)); err != ErrInvalidDateRange {
		t.Fatalf("expected ErrInvalidDateRange, got %v", err)
	}
}
