package ablation

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sells-group/proth-cli/internal/oracle"
	"github.com/sells-group/proth-cli/internal/resonance"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func countComposites(N uint64) int {
	c := 0
	for n := uint64(2); n <= N; n++ {
		if !oracle.IsPrime(n) {
			c++
		}
	}
	return c
}

func TestComputeMetrics(t *testing.T) {
	truth := []bool{true, true, false, false, true}
	pred := []bool{true, false, true, false, true}

	m, err := ComputeMetrics(truth, pred)
	require.NoError(t, err)
	assert.Equal(t, 2, m.TP)
	assert.Equal(t, 1, m.FP)
	assert.Equal(t, 1, m.TN)
	assert.Equal(t, 1, m.FN)
	assert.Equal(t, 5, m.Total)
	assert.InDelta(t, 0.6, m.Accuracy, 1e-12)
	assert.InDelta(t, 2.0/3.0, float64(m.PrecisionComposite), 1e-12)
	assert.InDelta(t, 2.0/3.0, float64(m.RecallComposite), 1e-12)
	assert.Equal(t, 3.0/5.0, m.CRR)
	assert.Equal(t, 2, m.Survivors)
}

func TestComputeMetrics_UndefinedRatios(t *testing.T) {
	m, err := ComputeMetrics([]bool{false, false}, []bool{false, false})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(float64(m.PrecisionComposite)))
	assert.True(t, math.IsNaN(float64(m.RecallComposite)))
	assert.Equal(t, 1.0, m.Accuracy)
	assert.Equal(t, 2, m.Survivors)

	b, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"precision_composite":null`)
	assert.Contains(t, string(b), `"recall_composite":null`)
}

func TestComputeMetrics_Errors(t *testing.T) {
	_, err := ComputeMetrics(nil, nil)
	assert.True(t, errors.Is(err, ErrEmptyRange))

	_, err = ComputeMetrics([]bool{true}, []bool{true, false})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "length mismatch")
}

func TestRun_Defaults(t *testing.T) {
	const N = 2000
	rep, err := Run(context.Background(), Config{N: N, Params: resonance.DefaultParams(), Workers: 4})
	require.NoError(t, err)
	require.Len(t, rep.Rows, N-1)

	composites := countComposites(N)
	for _, m := range []struct {
		name string
		TP   int
		FP   int
		TN   int
		FN   int
		tot  int
		crr  float64
	}{
		{"pi_a", rep.Adaptive.TP, rep.Adaptive.FP, rep.Adaptive.TN, rep.Adaptive.FN, rep.Adaptive.Total, rep.Adaptive.CRR},
		{"pi", rep.Plain.TP, rep.Plain.FP, rep.Plain.TN, rep.Plain.FN, rep.Plain.Total, rep.Plain.CRR},
	} {
		t.Run(m.name, func(t *testing.T) {
			assert.Equal(t, N-1, m.TP+m.FP+m.TN+m.FN)
			assert.Equal(t, N-1, m.tot)
			assert.Equal(t, float64(m.TP+m.FP)/float64(N-1), m.crr)
			// Every composite scores S=1 and G=1.8359 >= 0.5.
			assert.Equal(t, 0, m.FN)
			assert.Equal(t, composites, m.TP)
		})
	}

	assert.Equal(t, uint64(N), rep.Meta.N)
	assert.Equal(t, resonance.DefaultK, rep.Meta.K)
	assert.Equal(t, resonance.DefaultBeta, rep.Meta.Beta)
	assert.NotEmpty(t, rep.ID)
}

func TestRun_VariantsAgreeOnComposites(t *testing.T) {
	p := resonance.DefaultParams()
	p.K = -1.2
	p.R = 1.3
	rep, err := Run(context.Background(), Config{N: 3000, Params: p, Workers: 2})
	require.NoError(t, err)

	for _, r := range rep.Rows {
		if r.TruthComposite {
			assert.Equal(t, r.GAdaptive, r.GPlain, "n=%d", r.N)
			assert.True(t, r.PredAdaptive, "n=%d", r.N)
			assert.True(t, r.PredPlain, "n=%d", r.N)
		}
	}
}

func TestRun_OrderIndependentOfWorkers(t *testing.T) {
	cfg := Config{N: 3 * blockSize, Params: resonance.DefaultParams(), Workers: 1}
	serial, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	cfg.Workers = 8
	parallel, err := Run(context.Background(), cfg)
	require.NoError(t, err)

	if diff := cmp.Diff(serial.Rows, parallel.Rows); diff != "" {
		t.Fatalf("rows differ between worker counts (-serial +parallel):\n%s", diff)
	}
	for i, r := range parallel.Rows {
		require.Equal(t, uint64(i)+2, r.N)
	}
	assert.Equal(t, serial.Adaptive, parallel.Adaptive)
}

func TestRun_Errors(t *testing.T) {
	_, err := Run(context.Background(), Config{N: 1, Params: resonance.DefaultParams()})
	assert.True(t, errors.Is(err, ErrEmptyRange))

	p := resonance.DefaultParams()
	p.Mu = 0
	_, err = Run(context.Background(), Config{N: 100, Params: p})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mu must be > 0")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, Config{N: 50000, Params: resonance.DefaultParams(), Workers: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSweep_DefaultGrid(t *testing.T) {
	const N = 300
	rows, err := Sweep(context.Background(), N, resonance.DefaultParams(), DefaultGrid(), 4)
	require.NoError(t, err)
	require.Len(t, rows, 81)

	assert.Equal(t, -1.2, rows[0].Params.K)
	assert.Equal(t, 0.7, rows[0].Params.R)
	assert.Equal(t, 150.0, rows[0].Params.Beta)
	assert.Equal(t, 0.4, rows[0].Params.Thresh)
	assert.Equal(t, 0.6, rows[80].Params.Thresh)

	composites := countComposites(N)
	for _, r := range rows {
		m := r.Metrics
		assert.Equal(t, N-1, m.TP+m.FP+m.TN+m.FN)
		assert.Equal(t, 0, m.FN)
		assert.Equal(t, composites, m.TP)
	}
}

func TestSweep_Errors(t *testing.T) {
	_, err := Sweep(context.Background(), 1, resonance.DefaultParams(), DefaultGrid(), 1)
	assert.True(t, errors.Is(err, ErrEmptyRange))

	_, err = Sweep(context.Background(), 100, resonance.DefaultParams(), Grid{}, 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "grid is empty")

	bad := DefaultGrid()
	bad.Betas = []float64{-1}
	_, err = Sweep(context.Background(), 100, resonance.DefaultParams(), bad, 1)
	require.Error(t, err)
}
