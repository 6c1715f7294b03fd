package state

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MaxScore is the highest trust score a contract can get.
const MaxScore = 100

// ScanResult is the outcome of scoring a single contract address. It's
// created once (either by the oracle or by the block sweeper) and never
// changed after that.
type ScanResult struct {
	ContractAddress  common.Address `json:"contractAddress"`
	Score            uint8          `json:"score"`
	IsHoneypot       bool           `json:"isHoneypot"`
	IsMintable       bool           `json:"isMintable"`
	OwnerCanWithdraw bool           `json:"ownerCanWithdraw"`
	ScannedAt        time.Time      `json:"scannedAt"`
	// HasCertificate is set only when an on-chain certificate was minted
	// for this result.
	HasCertificate bool `json:"hasCertificate"`
	// BlockNumber and DeployerAddress are only set for contracts discovered
	// by the block sweeper.
	BlockNumber     *uint64         `json:"blockNumber,omitempty"`
	DeployerAddress *common.Address `json:"deployerAddress,omitempty"`
}

// AuditRequest is an on-chain request for a contract audit. It's never
// stored, every request is consumed by the oracle exactly once.
type AuditRequest struct {
	RequestID *big.Int
	Target    common.Address
	Requester common.Address
	Fee       *big.Int

	// TxHash and BlockNumber locate the log the request came from.
	TxHash      common.Hash
	BlockNumber uint64
}

// Stats is an aggregated view over stored scan results.
type Stats struct {
	TotalScans        int     `json:"totalScans"`
	TotalCertificates int     `json:"totalCertificates"`
	AverageScore      float64 `json:"averageScore"`
}
