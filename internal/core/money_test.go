package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in       string
		exponent int32
		out      int64
		ok       bool
	}{
		{"1", 2, 100, true},
		{"1.0", 2, 100, true},
		{"1.23", 2, 123, true},
		{"1,23", 2, 123, true},
		{"0.01", 2, 1, true},
		{"1.005", 2, 101, true},
		{" 2.50 ", 2, 250, true},
		{"120", 0, 120, true},
		{"99.5", 0, 100, true},
		{"-1", 2, 0, false},
		{"+1", 2, 0, false},
		{"0", 2, 0, false},
		{"0.001", 2, 0, false},
		{"abc", 2, 0, false},
		{"1.2.3", 2, 0, false},
		{"", 2, 0, false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in, tc.exponent)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error, got %d", tc.in, got)
		}
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		minor    int64
		exponent int32
		want     string
	}{
		{1234, 2, "12.34"},
		{5, 2, "0.05"},
		{-250, 2, "-2.50"},
		{120, 0, "120"},
		{0, 2, "0.00"},
	}
	for _, tc := range cases {
		if got := FormatAmount(tc.minor, tc.exponent); got != tc.want {
			t.Errorf("FormatAmount(%d, %d) = %q, want %q", tc.minor, tc.exponent, got, tc.want)
		}
	}
}
