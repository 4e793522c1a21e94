package check

import (
	"math/big"

	"github.com/xiangxiecrypto/veritas-sub001/internal/extract"
)

var bpsScale = big.NewInt(10000)

// Range passes when min <= value <= max, both bounds inclusive.
type Range struct {
	Min *big.Int
	Max *big.Int
}

func (Range) Kind() Kind { return KindRange }

func (c Range) Evaluate(dataKey string, data []byte) (bool, *big.Int) {
	v, _ := extract.Value(data, dataKey)
	return v.Cmp(c.Min) >= 0 && v.Cmp(c.Max) <= 0, v
}

// Threshold passes when the value deviates from the expected value by at
// most MaxDeviationBps basis points (10000 bps = 100%). An expected value
// of zero admits only an exact zero, since a relative deviation from zero
// is undefined.
type Threshold struct {
	Expected        *big.Int
	MaxDeviationBps int64
}

func (Threshold) Kind() Kind { return KindThreshold }

func (c Threshold) Evaluate(dataKey string, data []byte) (bool, *big.Int) {
	v, _ := extract.Value(data, dataKey)
	if c.Expected.Sign() == 0 {
		return v.Sign() == 0, v
	}
	deviation := new(big.Int).Sub(v, c.Expected)
	deviation.Abs(deviation)
	deviation.Mul(deviation, bpsScale)
	deviation.Div(deviation, new(big.Int).Abs(c.Expected))
	return deviation.Cmp(big.NewInt(c.MaxDeviationBps)) <= 0, v
}

// MinCount passes when the whole-number count at the data key is at least
// Min. The extraction is a digits-only scan: no sign, no decimals.
type MinCount struct {
	Min *big.Int
}

func (MinCount) Kind() Kind { return KindMinCount }

func (c MinCount) Evaluate(dataKey string, data []byte) (bool, *big.Int) {
	n, _ := extract.Count(data, dataKey)
	return n.Cmp(c.Min) >= 0, n
}

// Contains passes when the literal pattern `"Substring":` occurs anywhere
// in the payload. The data key is ignored; the scan covers the whole blob.
type Contains struct {
	Substring string
}

func (Contains) Kind() Kind { return KindContains }

func (c Contains) Evaluate(_ string, data []byte) (bool, *big.Int) {
	return extract.Contains(data, c.Substring), new(big.Int)
}
