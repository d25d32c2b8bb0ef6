package core

import (
	"errors"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{".5", 50, true},
		{"1.", 100, true},
		{"1.005", 101, true}, // half-up rounding
		{"12.344", 1234, true},
		{"0.005", 1, true},
		{" 2.50 ", 250, true},
		{"999999999999.99", 99999999999999, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.004", 0, false},
		{"abc", 0, false},
		{"1e3", 0, false},
		{"1 000", 0, false},
		{"1.2.3", 0, false},
		{"1,2.3", 0, false},
		{".", 0, false},
		{"", 0, false},
		{"1000000000000000", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %d (err=%v)", tc.in, got, err)
		}
	}
}

func TestMoneyUnits(t *testing.T) {
	m := Money{Cents: 12345}
	if m.Units() != 123.45 {
		t.Fatalf("expected 123.45, got %v", m.Units())
	}
	if got := MoneyFromUnits(123.45); got != m {
		t.Fatalf("expected %v, got %v", m, got)
	}
	if got := MoneyFromUnits(0.1 + 0.2); got.Cents != 30 {
		t.Fatalf("expected 30 cents, got %d", got.Cents)
	}
	if got := (Money{Cents: 5}).String(); got != "0.05" {
		t.Fatalf("expected 0.05, got %s", got)
	}
	if got := (Money{Cents: -150}).String(); got != "-1.50" {
		t.Fatalf("expected -1.50, got %s", got)
	}
}
