package prp

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/proth-cli/internal/model"
)

func TestCertify_Examples(t *testing.T) {
	t.Parallel()

	res, err := Certify(big.NewInt(97))
	require.NoError(t, err)
	assert.Equal(t, model.PRPProbablePrime, res.Status)
	assert.True(t, res.Passed())
	assert.Equal(t, len(WitnessBases), res.Rounds)

	// 91 = 7*13 is not itself in the table but is divisible by 7.
	res, err = Certify(big.NewInt(91))
	require.NoError(t, err)
	assert.Equal(t, model.PRPComposite, res.Status)
	assert.False(t, res.Passed())
}

func TestCertify_CaughtByMillerRabin(t *testing.T) {
	t.Parallel()

	// None of these has a factor in the small-prime table.
	for _, n := range []int64{961, 1147, 1271, 1517, 1681} {
		res, err := Certify(big.NewInt(n))
		require.NoError(t, err)
		assert.Equal(t, model.PRPComposite, res.Status, "n=%d", n)
		assert.GreaterOrEqual(t, res.Rounds, 1, "n=%d", n)
		assert.Contains(t, WitnessBases, res.RejectedBy, "n=%d", n)
	}

	// 2047 = 23*89 is the smallest strong pseudoprime to base 2.
	assert.True(t, StrongProbablePrime(big.NewInt(2047), 2))
	assert.False(t, StrongProbablePrime(big.NewInt(2047), 3))
}

func TestCertify_SmallPrimeTable(t *testing.T) {
	t.Parallel()

	for _, p := range SmallPrimes {
		res, err := Certify(big.NewInt(p))
		require.NoError(t, err)
		assert.Equal(t, model.PRPProbablePrime, res.Status, "p=%d", p)
		assert.Equal(t, 0, res.Rounds)
	}

	res, err := Certify(big.NewInt(4))
	require.NoError(t, err)
	assert.Equal(t, model.PRPComposite, res.Status)
	assert.Equal(t, int64(2), res.RejectedBy)

	res, err = Certify(big.NewInt(29 * 29))
	require.NoError(t, err)
	assert.Equal(t, model.PRPComposite, res.Status)
	assert.Equal(t, int64(29), res.RejectedBy)
}

func TestCertify_InvalidCandidate(t *testing.T) {
	t.Parallel()

	for _, n := range []*big.Int{nil, big.NewInt(1), big.NewInt(0), big.NewInt(-7)} {
		_, err := Certify(n)
		assert.True(t, errors.Is(err, model.ErrInvalidCandidate))
	}
}

func TestCertify_AgreesWithMathBig(t *testing.T) {
	t.Parallel()

	for n := int64(2); n < 20000; n++ {
		b := big.NewInt(n)
		res, err := Certify(b)
		require.NoError(t, err)
		assert.Equal(t, b.ProbablyPrime(20), res.Passed(), "n=%d", n)
	}
}

func TestCertify_LargeProthPrime(t *testing.T) {
	t.Parallel()

	var N *big.Int
	for k := int64(1); ; k += 2 {
		N = new(big.Int).Lsh(big.NewInt(k), 200)
		N.Add(N, big.NewInt(1))
		if N.ProbablyPrime(20) {
			break
		}
	}

	res, err := Certify(N)
	require.NoError(t, err)
	assert.True(t, res.Passed())

	composite := new(big.Int).Mul(N, big.NewInt(31))
	res, err = Certify(composite)
	require.NoError(t, err)
	assert.False(t, res.Passed())
}
