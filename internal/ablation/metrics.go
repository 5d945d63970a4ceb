package ablation

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/proth-cli/internal/model"
)

// ErrEmptyRange is returned when an ablation would evaluate no integers.
var ErrEmptyRange = eris.New("ablation: empty evaluation range")

// ComputeMetrics builds the confusion matrix for predictions against truth,
// treating "composite" (true) as the positive class.
func ComputeMetrics(truthComposite, predComposite []bool) (model.AblationMetrics, error) {
	if len(truthComposite) != len(predComposite) {
		return model.AblationMetrics{}, eris.Errorf("ablation: truth/pred length mismatch (%d vs %d)",
			len(truthComposite), len(predComposite))
	}
	total := len(truthComposite)
	if total == 0 {
		return model.AblationMetrics{}, ErrEmptyRange
	}

	var m model.AblationMetrics
	for i, truth := range truthComposite {
		pred := predComposite[i]
		switch {
		case truth && pred:
			m.TP++
		case !truth && pred:
			m.FP++
		case !truth && !pred:
			m.TN++
		default:
			m.FN++
		}
	}

	m.Total = total
	m.Accuracy = float64(m.TP+m.TN) / float64(total)
	m.PrecisionComposite = ratio(m.TP, m.TP+m.FP)
	m.RecallComposite = ratio(m.TP, m.TP+m.FN)
	m.CRR = float64(m.TP+m.FP) / float64(total)
	m.Survivors = total - (m.TP + m.FP)
	return m, nil
}

func ratio(num, den int) model.Ratio {
	if den == 0 {
		return model.Ratio(math.NaN())
	}
	return model.Ratio(float64(num) / float64(den))
}
