package check_test

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/xiangxiecrypto/veritas-sub001/internal/check"
	"github.com/xiangxiecrypto/veritas-sub001/pkg/fixedpoint"
)

// ── Range ─────────────────────────────────────────────────────────────────────

func TestRangeBoundaries(t *testing.T) {
	c := check.Range{
		Min: fixedpoint.MustParse("60000.00"),
		Max: fixedpoint.MustParse("100000.00"),
	}
	cases := []struct {
		name string
		data string
		want bool
	}{
		{"inside", `{"btcPrice":"68164.45"}`, true},
		{"exactly min", `{"btcPrice":"60000.00"}`, true},
		{"exactly max", `{"btcPrice":"100000.00"}`, true},
		{"one cent under min", `{"btcPrice":"59999.99"}`, false},
		{"one cent over max", `{"btcPrice":"100000.01"}`, false},
		{"missing key scores zero", `{"ethPrice":"1.00"}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			passed, _ := c.Evaluate("btcPrice", []byte(tc.data))
			if passed != tc.want {
				t.Errorf("passed = %v, want %v", passed, tc.want)
			}
		})
	}
}

func TestRangeReturnsExtractedValue(t *testing.T) {
	c := check.Range{Min: big.NewInt(0), Max: big.NewInt(1)}
	_, v := c.Evaluate("p", []byte(`{"p":"123.456"}`))
	if want := big.NewInt(12345); v.Cmp(want) != 0 {
		t.Errorf("value = %s, want %s", v, want)
	}
}

func TestRangeNegativeBounds(t *testing.T) {
	c := check.Range{
		Min: fixedpoint.MustParse("-10.00"),
		Max: fixedpoint.MustParse("-1.00"),
	}
	if passed, _ := c.Evaluate("delta", []byte(`{"delta":"-5.25"}`)); !passed {
		t.Error("value inside negative range should pass")
	}
	if passed, _ := c.Evaluate("delta", []byte(`{"delta":"0"}`)); passed {
		t.Error("zero is outside a strictly negative range")
	}
}

// ── Threshold ─────────────────────────────────────────────────────────────────

func TestThresholdDeviation(t *testing.T) {
	// expected 100.00, tolerance 250 bps: accepts 97.50 through 102.50.
	c := check.Threshold{
		Expected:        fixedpoint.MustParse("100.00"),
		MaxDeviationBps: 250,
	}
	cases := []struct {
		name string
		data string
		want bool
	}{
		{"exact", `{"v":"100.00"}`, true},
		{"upper edge", `{"v":"102.50"}`, true},
		{"lower edge", `{"v":"97.50"}`, true},
		{"just over", `{"v":"102.51"}`, false},
		{"just under", `{"v":"97.49"}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			passed, _ := c.Evaluate("v", []byte(tc.data))
			if passed != tc.want {
				t.Errorf("passed = %v, want %v", passed, tc.want)
			}
		})
	}
}

func TestThresholdExpectedZero(t *testing.T) {
	// A zero expectation admits only an exact zero, whatever the tolerance.
	for _, bps := range []int64{0, 100, 10000, 1 << 40} {
		c := check.Threshold{Expected: big.NewInt(0), MaxDeviationBps: bps}
		if passed, _ := c.Evaluate("v", []byte(`{"v":"0.00"}`)); !passed {
			t.Errorf("bps=%d: zero value should pass against zero expectation", bps)
		}
		if passed, _ := c.Evaluate("v", []byte(`{"v":"0.01"}`)); passed {
			t.Errorf("bps=%d: nonzero value should fail against zero expectation", bps)
		}
	}
}

func TestThresholdNegativeExpected(t *testing.T) {
	// Deviation is measured against |expected|.
	c := check.Threshold{
		Expected:        fixedpoint.MustParse("-200.00"),
		MaxDeviationBps: 500, // 5%
	}
	if passed, _ := c.Evaluate("v", []byte(`{"v":"-195.00"}`)); !passed {
		t.Error("-195.00 is within 5% of -200.00")
	}
	if passed, _ := c.Evaluate("v", []byte(`{"v":"-180.00"}`)); passed {
		t.Error("-180.00 is 10% away from -200.00")
	}
}

func TestThresholdLargeMagnitudes(t *testing.T) {
	// The deviation product must not overflow for values beyond int64.
	expected, ok := new(big.Int).SetString("92233720368547758079999", 10)
	if !ok {
		t.Fatal("bad fixture")
	}
	c := check.Threshold{Expected: expected, MaxDeviationBps: 10000}
	passed, _ := c.Evaluate("v", []byte(`{"v":"922337203685477580799.99"}`))
	if !passed {
		t.Error("exact large value should pass")
	}
}

// ── MinCount ──────────────────────────────────────────────────────────────────

func TestMinCount(t *testing.T) {
	c := check.MinCount{Min: big.NewInt(10000)}
	cases := []struct {
		name string
		data string
		want bool
	}{
		{"above", `{"followers":"15320"}`, true},
		{"exact", `{"followers":"10000"}`, true},
		{"below", `{"followers":"9999"}`, false},
		{"missing", `{"fans":"99999"}`, false},
		{"no digits", `{"followers":"many"}`, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			passed, _ := c.Evaluate("followers", []byte(tc.data))
			if passed != tc.want {
				t.Errorf("passed = %v, want %v", passed, tc.want)
			}
		})
	}
}

// ── Contains ──────────────────────────────────────────────────────────────────

func TestContains(t *testing.T) {
	c := check.Contains{Substring: "verified"}
	if passed, _ := c.Evaluate("ignored", []byte(`{"verified":true}`)); !passed {
		t.Error("present key should pass")
	}
	if passed, _ := c.Evaluate("ignored", []byte(`{"status":"verified"}`)); passed {
		t.Error("key name as a bare value should not pass")
	}
}

// ── Expr ──────────────────────────────────────────────────────────────────────

func TestExpr(t *testing.T) {
	c, err := check.NewExpr("value >= 6000000 && value <= 10000000")
	if err != nil {
		t.Fatalf("NewExpr: %v", err)
	}
	if passed, _ := c.Evaluate("btcPrice", []byte(`{"btcPrice":"68164.45"}`)); !passed {
		t.Error("in-range value should pass")
	}
	if passed, _ := c.Evaluate("btcPrice", []byte(`{"btcPrice":"1.00"}`)); passed {
		t.Error("out-of-range value should fail")
	}
}

func TestExprNonBooleanFails(t *testing.T) {
	c, err := check.NewExpr("value + 1")
	if err != nil {
		t.Fatalf("NewExpr: %v", err)
	}
	if passed, _ := c.Evaluate("v", []byte(`{"v":"1.00"}`)); passed {
		t.Error("non-boolean expression result must fail the check")
	}
}

func TestExprRejectsBadExpression(t *testing.T) {
	if _, err := check.NewExpr("value >=="); err == nil {
		t.Error("expected compile error for malformed expression")
	}
	if _, err := check.NewExpr(""); err == nil {
		t.Error("expected error for empty expression")
	}
}

// ── Decode ────────────────────────────────────────────────────────────────────

func TestDecode(t *testing.T) {
	cases := []struct {
		kind   check.Kind
		params string
	}{
		{check.KindRange, `{"min":"60000.00","max":"100000.00"}`},
		{check.KindThreshold, `{"expected":"100.00","max_deviation_bps":250}`},
		{check.KindMinCount, `{"min_count":10000}`},
		{check.KindContains, `{"substring":"verified"}`},
		{check.KindExpr, `{"expression":"value > 0"}`},
	}
	for _, tc := range cases {
		c, err := check.Decode(tc.kind, json.RawMessage(tc.params))
		if err != nil {
			t.Errorf("Decode(%s): %v", tc.kind, err)
			continue
		}
		if c.Kind() != tc.kind {
			t.Errorf("Decode(%s).Kind() = %s", tc.kind, c.Kind())
		}
	}
}

func TestDecodeRejectsBadParams(t *testing.T) {
	cases := []struct {
		name   string
		kind   check.Kind
		params string
	}{
		{"range not json", check.KindRange, `nope`},
		{"range bad min", check.KindRange, `{"min":"abc","max":"1.00"}`},
		{"threshold bad expected", check.KindThreshold, `{"expected":"","max_deviation_bps":10}`},
		{"threshold negative bps", check.KindThreshold, `{"expected":"1.00","max_deviation_bps":-1}`},
		{"contains empty", check.KindContains, `{"substring":""}`},
		{"expr malformed", check.KindExpr, `{"expression":"value >=="}`},
		{"unknown kind", check.Kind("exists"), `{}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := check.Decode(tc.kind, json.RawMessage(tc.params)); err == nil {
				t.Error("expected decode error, got nil")
			}
		})
	}
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"range", "threshold", "min_count", "contains", "expr"} {
		if _, err := check.ParseKind(s); err != nil {
			t.Errorf("ParseKind(%q): %v", s, err)
		}
	}
	if _, err := check.ParseKind("regex"); err == nil {
		t.Error("expected error for unknown kind")
	}
}
