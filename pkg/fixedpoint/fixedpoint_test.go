package fixedpoint_test

import (
	"math/big"
	"testing"

	"github.com/xiangxiecrypto/veritas-sub001/pkg/fixedpoint"
)

func TestParseScaling(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"68164.45", 6816445},
		{"68164.4523", 6816445}, // extra digits truncated, not rounded
		{"68164.4", 6816440},
		{"68164.", 6816400},
		{"68164", 6816400},
		{"-12.5", -1250},
		{"-0.01", -1},
		{"0", 0},
		{"0.00", 0},
		{".5", 50},
		{"0.999", 99},
		{"-0.999", -99},
	}
	for _, tc := range cases {
		got, err := fixedpoint.Parse(tc.in)
		if err != nil {
			t.Errorf("Parse(%q): unexpected error: %v", tc.in, err)
			continue
		}
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Errorf("Parse(%q) = %s, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, in := range []string{"", "-", ".", "-.", "12.3.4", "12a", "+5", " 5", "1,5"} {
		if _, err := fixedpoint.Parse(in); err == nil {
			t.Errorf("Parse(%q): expected error, got nil", in)
		}
	}
}

func TestParseLargeValue(t *testing.T) {
	// Values beyond int64 range must survive intact.
	in := "92233720368547758079.99"
	want, ok := new(big.Int).SetString("9223372036854775807999", 10)
	if !ok {
		t.Fatal("bad fixture")
	}
	got, err := fixedpoint.Parse(in)
	if err != nil {
		t.Fatalf("Parse(%q): %v", in, err)
	}
	if got.Cmp(want) != 0 {
		t.Errorf("Parse(%q) = %s, want %s", in, got, want)
	}
}

func TestCompose(t *testing.T) {
	cases := []struct {
		neg   bool
		ints  string
		fracs string
		want  int64
	}{
		{false, "68164", "45", 6816445},
		{false, "68164", "4523", 6816445},
		{false, "68164", "", 6816400},
		{false, "", "5", 50},
		{false, "", "", 0},
		{true, "", "", 0}, // minus with no digits is still zero
		{true, "12", "5", -1250},
		{false, "007", "10", 710},
	}
	for _, tc := range cases {
		got := fixedpoint.Compose(tc.neg, tc.ints, tc.fracs)
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Errorf("Compose(%v, %q, %q) = %s, want %d", tc.neg, tc.ints, tc.fracs, got, tc.want)
		}
	}
}

func TestFormat(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{6816445, "68164.45"},
		{6816440, "68164.40"},
		{-1250, "-12.50"},
		{0, "0.00"},
		{5, "0.05"},
		{-5, "-0.05"},
		{100, "1.00"},
	}
	for _, tc := range cases {
		if got := fixedpoint.Format(big.NewInt(tc.in)); got != tc.want {
			t.Errorf("Format(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFormatNil(t *testing.T) {
	if got := fixedpoint.Format(nil); got != "0.00" {
		t.Errorf("Format(nil) = %q, want %q", got, "0.00")
	}
}
