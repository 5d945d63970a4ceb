package model

import "math/big"

// Label is the resonance classifier output.
type Label string

const (
	// LabelComposite means the resonance amplitude crossed the threshold.
	LabelComposite Label = "COMPOSITE"
	// LabelPrimeCandidate means "not flagged composite". It is never a proof.
	LabelPrimeCandidate Label = "PRIME?"
)

// ResonanceResult is the triage signal for one integer.
type ResonanceResult struct {
	N     uint64  `json:"n" yaml:"n"`
	S     float64 `json:"S" yaml:"S"`
	G     float64 `json:"G" yaml:"G"`
	Label Label   `json:"label" yaml:"label"`
}

// ProthWitnessResult is the outcome of a Proth's theorem witness search.
// Proven=true is a deterministic primality proof; Proven=false is inconclusive,
// never a proof of compositeness. Applicable=false means the (N, k, n) triple is
// not of Proth form and no search was run.
type ProthWitnessResult struct {
	N          *big.Int `json:"N" yaml:"N"`
	K          *big.Int `json:"k,omitempty" yaml:"k,omitempty"`
	Exp        uint     `json:"n" yaml:"n"`
	Witness    *big.Int `json:"a,omitempty" yaml:"a,omitempty"`
	Proven     bool     `json:"proven" yaml:"proven"`
	Applicable bool     `json:"applicable" yaml:"applicable"`
	Trials     int      `json:"trials" yaml:"trials"`
}

// PRPStatus is the probabilistic certifier verdict. There is deliberately no
// "prime" value: a pass is only ever a probable prime.
type PRPStatus string

const (
	PRPComposite     PRPStatus = "composite"
	PRPProbablePrime PRPStatus = "probable_prime"
)

// PRPResult is the outcome of the strong-pseudoprime certifier.
type PRPResult struct {
	Status PRPStatus `json:"status" yaml:"status"`
	// Rounds counts Miller-Rabin rounds actually run (0 when the small-prime
	// table decided).
	Rounds int `json:"rounds" yaml:"rounds"`
	// RejectedBy is the small prime or witness base that exposed N, if any.
	RejectedBy int64 `json:"rejected_by,omitempty" yaml:"rejected_by,omitempty"`
}

// Passed reports whether N survived every round.
func (r PRPResult) Passed() bool { return r.Status == PRPProbablePrime }

// ExternalStatus classifies an external certifier invocation.
type ExternalStatus string

const (
	ExternalOK      ExternalStatus = "ok"
	ExternalFail    ExternalStatus = "fail"
	ExternalError   ExternalStatus = "error"
	ExternalTimeout ExternalStatus = "timeout"
)

// ExternalResult captures one invocation of an out-of-process certifier.
type ExternalResult struct {
	Status          ExternalStatus `json:"result" yaml:"result"`
	ElapsedMS       float64        `json:"ms" yaml:"ms"`
	Command         string         `json:"cmd" yaml:"cmd"`
	ExitCode        int            `json:"exit_code" yaml:"exit_code"`
	Stdout          string         `json:"stdout" yaml:"stdout"`
	Stderr          string         `json:"stderr" yaml:"stderr"`
	CertificatePath string         `json:"cert_path,omitempty" yaml:"cert_path,omitempty"`
}
