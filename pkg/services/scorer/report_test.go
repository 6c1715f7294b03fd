package scorer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvaluate(t *testing.T) {
	testCases := []struct {
		name     string
		ts       TokenSecurity
		expected Report
	}{
		{
			name:     "clean",
			ts:       TokenSecurity{IsOpenSource: "1", BuyTax: "0", SellTax: "0"},
			expected: Report{Score: 100},
		},
		{
			name:     "nothing known",
			ts:       TokenSecurity{},
			expected: Report{Score: 80},
		},
		{
			name: "mintable closed source with buy tax",
			ts: TokenSecurity{
				IsHoneypot:           "0",
				IsOpenSource:         "0",
				IsProxy:              "0",
				IsMintable:           "1",
				CanTakeBackOwnership: "0",
				BuyTax:               "0.15",
				SellTax:              "0",
			},
			expected: Report{Score: 50, IsMintable: true},
		},
		{
			name:     "proxy with owner takeback",
			ts:       TokenSecurity{IsOpenSource: "1", IsProxy: "1", CanTakeBackOwnership: "1"},
			expected: Report{Score: 70, OwnerCanWithdraw: true},
		},
		{
			name:     "tax at threshold",
			ts:       TokenSecurity{IsOpenSource: "1", BuyTax: "0.1", SellTax: "0.1"},
			expected: Report{Score: 100},
		},
		{
			name:     "sell tax",
			ts:       TokenSecurity{IsOpenSource: "1", SellTax: "0.5"},
			expected: Report{Score: 85},
		},
		{
			name:     "garbage tax",
			ts:       TokenSecurity{IsOpenSource: "1", BuyTax: "lots", SellTax: ""},
			expected: Report{Score: 100},
		},
		{
			name: "everything bad",
			ts: TokenSecurity{
				IsOpenSource:         "0",
				IsProxy:              "1",
				IsMintable:           "1",
				CanTakeBackOwnership: "1",
				BuyTax:               "0.2",
				SellTax:              "0.2",
			},
			expected: Report{Score: 5, IsMintable: true, OwnerCanWithdraw: true},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, Evaluate(tc.ts))
		})
	}
}

// allSecurityCombinations enumerates every flag combination with a set of
// tax values.
func allSecurityCombinations() []TokenSecurity {
	var (
		flags = []string{"0", "1", ""}
		taxes = []string{"0", "0.1", "0.11", "1", "x"}
		res   []TokenSecurity
	)
	for _, hp := range flags {
		for _, os := range flags {
			for _, px := range flags {
				for _, mn := range flags {
					for _, own := range flags {
						for _, bt := range taxes {
							for _, st := range taxes {
								res = append(res, TokenSecurity{
									IsHoneypot:           hp,
									IsOpenSource:         os,
									IsProxy:              px,
									IsMintable:           mn,
									CanTakeBackOwnership: own,
									BuyTax:               bt,
									SellTax:              st,
								})
							}
						}
					}
				}
			}
		}
	}
	return res
}

func TestEvaluateBounds(t *testing.T) {
	for _, ts := range allSecurityCombinations() {
		r := Evaluate(ts)
		require.LessOrEqual(t, r.Score, uint8(100), "%+v", ts)
		if ts.IsHoneypot == "1" {
			require.Zero(t, r.Score, "%+v", ts)
			require.True(t, r.IsHoneypot)
		}
	}
}

func TestFallbackReport(t *testing.T) {
	require.Equal(t, Report{Score: 50}, FallbackReport)
}
