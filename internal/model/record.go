package model

import (
	"math/big"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
)

// Verdict summarizes the evidence accumulated in a CertificationRecord.
type Verdict string

const (
	VerdictProvenPrime   Verdict = "proven_prime"
	VerdictComposite     Verdict = "composite"
	VerdictProbablePrime Verdict = "probable_prime"
	VerdictUndetermined  Verdict = "undetermined"
)

// CertificationRecord is the append-only audit trail for one candidate.
// Tier fields are written through the Set* methods, each of which refuses a
// second write; external attempts are appended, never replaced.
type CertificationRecord struct {
	ID           string              `json:"id" yaml:"id"`
	N            *big.Int            `json:"N" yaml:"N"`
	Digits       int                 `json:"digits" yaml:"digits"`
	K            *big.Int            `json:"k,omitempty" yaml:"k,omitempty"`
	Exp          *uint               `json:"n,omitempty" yaml:"n,omitempty"`
	Resonance    *ResonanceResult    `json:"resonance,omitempty" yaml:"resonance,omitempty"`
	ProthWitness *ProthWitnessResult `json:"proth_witness,omitempty" yaml:"proth_witness,omitempty"`
	PRP          *PRPResult          `json:"prp,omitempty" yaml:"prp,omitempty"`
	ECPP         []ExternalResult    `json:"ecpp,omitempty" yaml:"ecpp,omitempty"`
	CreatedAt    time.Time           `json:"created_at" yaml:"created_at"`
}

// NewRecord starts an empty record for c.
func NewRecord(c Candidate) *CertificationRecord {
	rec := &CertificationRecord{
		ID:        uuid.New().String(),
		N:         c.N(),
		Digits:    c.Digits(),
		CreatedAt: time.Now().UTC(),
	}
	if k, exp, ok := c.Decomposition(); ok {
		rec.K = k
		rec.Exp = &exp
	}
	return rec
}

// SetResonance records the triage result.
func (r *CertificationRecord) SetResonance(res ResonanceResult) error {
	if r.Resonance != nil {
		return eris.Wrap(ErrFieldAlreadySet, "resonance")
	}
	r.Resonance = &res
	return nil
}

// SetProthWitness records the Proth tier result.
func (r *CertificationRecord) SetProthWitness(res ProthWitnessResult) error {
	if r.ProthWitness != nil {
		return eris.Wrap(ErrFieldAlreadySet, "proth_witness")
	}
	r.ProthWitness = &res
	return nil
}

// SetPRP records the probabilistic certifier result.
func (r *CertificationRecord) SetPRP(res PRPResult) error {
	if r.PRP != nil {
		return eris.Wrap(ErrFieldAlreadySet, "prp")
	}
	r.PRP = &res
	return nil
}

// AppendExternal adds an external certifier attempt.
func (r *CertificationRecord) AppendExternal(res ExternalResult) {
	r.ECPP = append(r.ECPP, res)
}

// Verdict derives the strongest claim the evidence supports. External
// attempts do not change the verdict: the bridge never interprets the tool's
// output beyond its exit status, see Certified.
func (r *CertificationRecord) Verdict() Verdict {
	switch {
	case r.ProthWitness != nil && r.ProthWitness.Proven:
		return VerdictProvenPrime
	case r.PRP != nil && r.PRP.Status == PRPComposite:
		return VerdictComposite
	case r.PRP != nil && r.PRP.Status == PRPProbablePrime:
		return VerdictProbablePrime
	default:
		return VerdictUndetermined
	}
}

// Certified reports whether any external attempt exited cleanly and left a
// certificate file behind.
func (r *CertificationRecord) Certified() bool {
	for _, e := range r.ECPP {
		if e.Status == ExternalOK && e.CertificatePath != "" {
			return true
		}
	}
	return false
}
