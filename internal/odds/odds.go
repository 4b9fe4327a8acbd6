// Package odds prices bets against the two outcome banks of a condition.
//
// Every function is pure integer math. Odds, margins and the multiplier share
// one fixed-point scale (quant.Multiplier in production).
package odds

import (
	"math"

	"poolbet/internal/domain"
	"poolbet/pkg/quant"

	"github.com/holiman/uint256"
)

// BaseOdds returns the fair odds for staking amount on outcomeIndex, taken
// from the post-stake reserve ratio: (bank0+bank1+amount) / (own+amount).
// A stake that is large against the opposing bank moves the odds toward 1.0.
// Sums are taken in 256 bits; odds beyond int64 saturate.
func BaseOdds(bank0, bank1, amount int64, outcomeIndex int, multiplier int64) int64 {
	own := bank0
	if outcomeIndex == 1 {
		own = bank1
	}
	if bank0 < 0 || bank1 < 0 || amount < 0 || (own == 0 && amount == 0) {
		return multiplier
	}
	num := uint256.NewInt(uint64(bank0))
	num.Add(num, uint256.NewInt(uint64(bank1)))
	num.Add(num, uint256.NewInt(uint64(amount)))
	num.Mul(num, uint256.NewInt(uint64(multiplier)))
	den := uint256.NewInt(uint64(own))
	den.Add(den, uint256.NewInt(uint64(amount)))
	num.Div(num, den)
	if !num.IsUint64() || num.Uint64() > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(num.Uint64())
}

// MarginAdjusted compresses odds toward 1.0 so that the implied
// probabilities of both sides sum to roughly 1+margin. The result never
// exceeds odds and never drops below 1.0.
func MarginAdjusted(odds, margin, multiplier int64) int64 {
	if margin <= 0 || odds <= multiplier {
		return odds
	}
	if margin >= multiplier {
		return multiplier
	}

	d := uint256.NewInt(uint64(multiplier))
	o := uint256.NewInt(uint64(odds))
	m := uint256.NewInt(uint64(margin))
	dd := new(uint256.Int).Mul(d, d)

	// odds of the opposite side implied by a zero-margin book
	den := new(uint256.Int).Div(dd, o)
	den.Sub(d, den)
	revert := new(uint256.Int).Div(dd, den)
	revertExcess := new(uint256.Int).Sub(revert, d)
	oddsExcess := new(uint256.Int).Sub(o, d)

	a := new(uint256.Int).Add(d, m)
	a.Mul(a, revertExcess)
	a.Div(a, oddsExcess)
	if a.IsZero() {
		return odds
	}

	b := new(uint256.Int).Mul(revertExcess, d)
	b.Div(b, oddsExcess)
	b.Mul(b, m)
	b.Add(b, new(uint256.Int).Mul(d, m))
	b.Div(b, d)

	c := new(uint256.Int).Add(d, d)
	c.Sub(c, new(uint256.Int).Add(d, m))

	// positive root of a*x^2 + b*x - c = 0
	disc := new(uint256.Int).Mul(b, b)
	fourAC := new(uint256.Int).Mul(a, c)
	fourAC.Lsh(fourAC, 2)
	disc.Add(disc, fourAC)
	root := new(uint256.Int).Sqrt(disc)

	x := new(uint256.Int).Sub(root, b)
	x.Mul(x, d)
	x.Div(x, new(uint256.Int).Lsh(a, 1))
	x.Add(x, d)

	if !x.IsUint64() || x.Uint64() > uint64(odds) {
		return odds
	}
	if x.Uint64() < uint64(multiplier) {
		return multiplier
	}
	return int64(x.Uint64())
}

// Price returns the margin-adjusted odds for a stake of amount on
// outcomeIndex given the current banks.
func Price(bank0, bank1, amount int64, outcomeIndex int, margin, multiplier int64) int64 {
	return MarginAdjusted(BaseOdds(bank0, bank1, amount, outcomeIndex, multiplier), margin, multiplier)
}

// SplitReinforcement divides reinforcement between the two banks so that the
// fair odds of a zero stake match the hints odds0 and odds1.
func SplitReinforcement(reinforcement, odds0, odds1 int64) (bank0, bank1 int64, err error) {
	if odds0 <= 0 || odds1 <= 0 {
		return 0, 0, domain.ErrZeroOdds
	}
	bank0 = quant.MulDiv(reinforcement, odds1, odds0+odds1)
	return bank0, reinforcement - bank0, nil
}
