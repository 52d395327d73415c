package interpret

import (
	"math"
	"math/big"
	"strconv"
)

// MphPerMps converts metres/second to miles/hour.
const MphPerMps = 2.23694

// MpsToMph converts a wind speed from m/s to mph.
func MpsToMph(mps float64) float64 {
	return mps * MphPerMps
}

// RoundHalfUp rounds to the nearest integer with halves going towards +Inf,
// so -2.5 becomes -2 and 2.5 becomes 3.
func RoundHalfUp(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r := math.Floor(v)
	if v-r >= 0.5 {
		r++
	}
	if r == 0 {
		r = 0 // drop negative zero
	}
	return r
}

// FormatWholeDegrees renders a temperature rounded with RoundHalfUp.
func FormatWholeDegrees(c float64) string {
	return strconv.FormatFloat(RoundHalfUp(c), 'f', 0, 64)
}

// FormatOneDecimal renders v with one decimal place. Exact binary ties
// (0.25, 1.75) round away from zero; everything else rounds to nearest.
func FormatOneDecimal(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	tenths := new(big.Float).SetPrec(128).SetFloat64(math.Abs(v))
	tenths.Mul(tenths, big.NewFloat(10))
	whole, _ := tenths.Int(nil)
	rem := new(big.Float).SetPrec(128).Sub(tenths, new(big.Float).SetInt(whole))
	if rem.Cmp(big.NewFloat(0.5)) != 0 {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}

	whole.Add(whole, big.NewInt(1))
	digits := whole.String()
	if len(digits) < 2 {
		digits = "0" + digits
	}
	out := digits[:len(digits)-1] + "." + digits[len(digits)-1:]
	if v < 0 {
		out = "-" + out
	}
	return out
}
