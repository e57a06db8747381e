package core

import (
	"errors"
	"math"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out float64
		ok  bool
	}{
		{"100", 100, true},
		{"1234.56", 1234.56, true},
		{"-45,50", -45.50, true},
		{"R$ -1.234,56", -1234.56, true},
		{"R$1.234,56", 1234.56, true},
		{"(1,234.56)", -1234.56, true},
		{"(R$ 50,00)", -50, true},
		{"(-12.00)", -12, true},
		{"1,234,567.89", 1234567.89, true},
		{"$ 12.5", 12.5, true},
		{"€ 3,99", 3.99, true},
		{" 2.50 ", 2.5, true},
		{"1.234", 1.234, true},
		{"", 0, false},
		{"   ", 0, false},
		{"R$", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"()", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || math.Abs(got-tc.out) > 1e-9 {
				t.Fatalf("%q expected %v, got %v (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error, got %v", tc.in, got)
			}
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
			}
		}
	}
}

func TestParseAmountRoundTrip(t *testing.T) {
	inputs := []string{"R$ -1.234,56", "(1,234.56)", "1234.56", "-45,50", "100", "0,99", "9.999.999,01"}
	for _, in := range inputs {
		first, err := ParseAmount(in)
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		for _, brazilian := range []bool{true, false} {
			formatted := FormatAmount(first, brazilian)
			second, err := ParseAmount(formatted)
			if err != nil {
				t.Fatalf("%q -> %q: %v", in, formatted, err)
			}
			if math.Abs(first-second) > 1e-9 {
				t.Fatalf("%q -> %q: got %v, want %v", in, formatted, second, first)
			}
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		in        float64
		brazilian bool
		want      string
	}{
		{-1234.56, true, "-1.234,56"},
		{-1234.56, false, "-1,234.56"},
		{100, false, "100.00"},
		{0.5, true, "0,50"},
		{1234567.891, false, "1,234,567.89"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.in, tc.brazilian); got != tc.want {
			t.Errorf("FormatAmount(%v, %v) = %q, want %q", tc.in, tc.brazilian, got, tc.want)
		}
	}
}

func TestCents(t *testing.T) {
	cases := map[float64]int64{
		12.34:  1234,
		-45.5:  -4550,
		0.005:  1,
		-0.005: -1,
		100:    10000,
	}
	for in, want := range cases {
		if got := Cents(in); got != want {
			t.Errorf("Cents(%v) = %d, want %d", in, got, want)
		}
	}
}
