package query

import (
	"fmt"
	"io"

	"github.com/auditoracle/audit-oracle/pkg/core/state"
	"github.com/fatih/color"
)

// Score thresholds for the text report.
const (
	trustedScore = 80
	neutralScore = 50
)

// printReport writes human-readable scan result, colors are only used on
// terminals.
func printReport(w io.Writer, res state.ScanResult) {
	scoreColor := color.New(color.FgRed, color.Bold)
	switch {
	case res.Score >= trustedScore:
		scoreColor = color.New(color.FgGreen, color.Bold)
	case res.Score >= neutralScore:
		scoreColor = color.New(color.FgYellow)
	}

	_, _ = fmt.Fprintf(w, "Contract: %s\n", res.ContractAddress.Hex())
	_, _ = scoreColor.Fprintf(w, "Score: %d/%d\n", res.Score, state.MaxScore)
	printFlag(w, "Honeypot", res.IsHoneypot)
	printFlag(w, "Mintable", res.IsMintable)
	printFlag(w, "Owner can withdraw", res.OwnerCanWithdraw)
}

func printFlag(w io.Writer, name string, set bool) {
	if set {
		_, _ = color.New(color.FgRed).Fprintf(w, "%s: yes\n", name)
		return
	}
	_, _ = fmt.Fprintf(w, "%s: no\n", name)
}
