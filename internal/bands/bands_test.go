package bands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/proth-cli/internal/model"
)

func TestForDigits_Hundred(t *testing.T) {
	got, err := ForDigits(100, 9)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(got), 6)

	assert.Equal(t, []Band{
		{Exp: 332, Ks: []int{1}},
		{Exp: 331, Ks: []int{1}},
		{Exp: 330, Ks: []int{1, 3}},
		{Exp: 329, Ks: []int{1, 3, 5, 7, 9}},
		{Exp: 328, Ks: []int{3, 5, 7, 9}},
		{Exp: 327, Ks: []int{5, 7, 9}},
	}, got[:6])
}

func TestForDigits_DigitCountsAreExact(t *testing.T) {
	for _, digits := range []int{3, 10, 42, 100} {
		bands, err := ForDigits(digits, 15)
		require.NoError(t, err)
		require.NotEmpty(t, bands)
		for i, b := range bands {
			if i > 0 {
				assert.Less(t, b.Exp, bands[i-1].Exp, "sorted by decreasing n")
			}
			cands, err := b.Candidates(true)
			require.NoError(t, err)
			for _, c := range cands {
				assert.Equal(t, digits, c.Digits(), "N=%s", c.String())
			}
		}
	}
}

func TestForDigits_SmallTargetsClampExponent(t *testing.T) {
	got, err := ForDigits(1, 9)
	require.NoError(t, err)
	assert.Equal(t, []Band{
		{Exp: 3, Ks: []int{1}},
		{Exp: 2, Ks: []int{1}},
		{Exp: 1, Ks: []int{1, 3}},
	}, got)
}

func TestForDigits_KMaxOne(t *testing.T) {
	got, err := ForDigits(100, 1)
	require.NoError(t, err)
	for _, b := range got {
		assert.Equal(t, []int{1}, b.Ks)
	}
}

func TestForDigits_Invalid(t *testing.T) {
	_, err := ForDigits(0, 9)
	assert.Error(t, err)
	_, err = ForDigits(10, 0)
	assert.Error(t, err)
}

func TestBand_Candidates(t *testing.T) {
	b := Band{Exp: 2, Ks: []int{1, 3, 5, 7}}

	proth, err := b.Candidates(false)
	require.NoError(t, err)
	require.Len(t, proth, 2)
	assert.Equal(t, "5", proth[0].String())
	assert.Equal(t, "13", proth[1].String())

	all, err := b.Candidates(true)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	var c model.Candidate = all[3]
	k, exp, ok := c.Decomposition()
	require.True(t, ok)
	assert.Equal(t, int64(7), k.Int64())
	assert.Equal(t, uint(2), exp)
}
