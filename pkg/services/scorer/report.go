package scorer

import (
	"strconv"

	"github.com/auditoracle/audit-oracle/pkg/core/state"
)

// Score penalties applied by Evaluate.
const (
	honeypotPenalty      = 100
	closedSourcePenalty  = 20
	proxyPenalty         = 10
	mintablePenalty      = 15
	takeBackOwnerPenalty = 20
	buyTaxPenalty        = 15
	sellTaxPenalty       = 15
)

const (
	// highTaxThreshold is the buy/sell tax fraction above which a penalty
	// is applied.
	highTaxThreshold     = 0.1
	neutralFallbackScore = 50
	flagTrue             = "1"
)

// TokenSecurity is the per-address entry of the risk-analysis service reply.
// Flags are "1" for true and "0" for false, taxes are decimal fractions.
type TokenSecurity struct {
	IsHoneypot           string `json:"is_honeypot"`
	IsOpenSource         string `json:"is_open_source"`
	IsProxy              string `json:"is_proxy"`
	IsMintable           string `json:"is_mintable"`
	CanTakeBackOwnership string `json:"can_take_back_ownership"`
	BuyTax               string `json:"buy_tax"`
	SellTax              string `json:"sell_tax"`
}

// Report is a normalized scoring result.
type Report struct {
	Score            uint8 `json:"score"`
	IsHoneypot       bool  `json:"isHoneypot"`
	IsMintable       bool  `json:"isMintable"`
	OwnerCanWithdraw bool  `json:"ownerCanWithdraw"`
}

// FallbackReport is a neutral report used when the scoring service is
// unavailable, but some answer is still required.
var FallbackReport = Report{Score: neutralFallbackScore}

// Evaluate calculates the trust score for the given security data. Penalties
// are summed before clamping to [0, state.MaxScore], so a honeypot always gets
// zero.
func Evaluate(ts TokenSecurity) Report {
	score := state.MaxScore
	if ts.IsHoneypot == flagTrue {
		score -= honeypotPenalty
	}
	if ts.IsOpenSource != flagTrue {
		score -= closedSourcePenalty
	}
	if ts.IsProxy == flagTrue {
		score -= proxyPenalty
	}
	if ts.IsMintable == flagTrue {
		score -= mintablePenalty
	}
	if ts.CanTakeBackOwnership == flagTrue {
		score -= takeBackOwnerPenalty
	}
	if parseTax(ts.BuyTax) > highTaxThreshold {
		score -= buyTaxPenalty
	}
	if parseTax(ts.SellTax) > highTaxThreshold {
		score -= sellTaxPenalty
	}
	return Report{
		Score:            clamp(score),
		IsHoneypot:       ts.IsHoneypot == flagTrue,
		IsMintable:       ts.IsMintable == flagTrue,
		OwnerCanWithdraw: ts.CanTakeBackOwnership == flagTrue,
	}
}

// parseTax returns 0 for anything that is not a number.
func parseTax(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func clamp(score int) uint8 {
	switch {
	case score < 0:
		return 0
	case score > state.MaxScore:
		return state.MaxScore
	default:
		return uint8(score)
	}
}
