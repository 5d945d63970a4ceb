package model

import (
	"encoding/json"
	"math"
	"time"
)

// Ratio is a metric that may be undefined. NaN marshals as JSON null.
type Ratio float64

// MarshalJSON implements json.Marshaler.
func (r Ratio) MarshalJSON() ([]byte, error) {
	if math.IsNaN(float64(r)) || math.IsInf(float64(r), 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(r))
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Ratio) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*r = Ratio(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

// AblationMetrics is a confusion matrix with COMPOSITE as the positive class.
type AblationMetrics struct {
	Accuracy           float64 `json:"accuracy"`
	PrecisionComposite Ratio   `json:"precision_composite"`
	RecallComposite    Ratio   `json:"recall_composite"`
	CRR                float64 `json:"CRR"`
	Survivors          int     `json:"survivors"`
	Total              int     `json:"total"`
	TP                 int     `json:"TP"`
	FP                 int     `json:"FP"`
	TN                 int     `json:"TN"`
	FN                 int     `json:"FN"`
}

// AblationMeta describes the parameters of one ablation run.
type AblationMeta struct {
	N          uint64  `json:"N"`
	K          float64 `json:"K"`
	R          float64 `json:"r"`
	Beta       float64 `json:"beta"`
	Thresh     float64 `json:"thresh"`
	Alpha      float64 `json:"alpha"`
	Mu         float64 `json:"mu"`
	T          float64 `json:"t"`
	RuntimeSec float64 `json:"runtime_sec"`
}

// AblationRun is the persisted summary of one ablation: the adaptive-pi
// variant, the plain-pi (K=0) variant and the run parameters.
type AblationRun struct {
	ID        string          `json:"id"`
	Meta      AblationMeta    `json:"meta"`
	Adaptive  AblationMetrics `json:"pi_a"`
	Plain     AblationMetrics `json:"pi"`
	CreatedAt time.Time       `json:"created_at"`
}
