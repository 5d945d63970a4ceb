package ecpp

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/proth-cli/internal/model"
)

func resolvedTempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

func TestBuildCommand(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "primo -c 97 --out 97.cert", BuildCommand("primo -c {N} --out {N}.cert", big.NewInt(97)))
	assert.Equal(t, "echo static", BuildCommand("echo static", big.NewInt(97)))
}

func TestCertify_EchoOK(t *testing.T) {
	t.Parallel()

	b := NewCommandBridge("echo {N} done")
	res := b.Certify(context.Background(), big.NewInt(97))

	assert.Equal(t, model.ExternalOK, res.Status)
	assert.Equal(t, "echo 97 done", res.Command)
	assert.Equal(t, "97 done\n", res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.Empty(t, res.CertificatePath)
	assert.Equal(t, 0, res.ExitCode)
	assert.GreaterOrEqual(t, res.ElapsedMS, 0.0)
}

func TestCertify_NonZeroExit(t *testing.T) {
	t.Parallel()

	b := NewCommandBridge("echo failing {N} >&2; exit 3")
	res := b.Certify(context.Background(), big.NewInt(91))

	assert.Equal(t, model.ExternalFail, res.Status)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "failing 91\n", res.Stderr)
}

func TestCertify_LaunchError(t *testing.T) {
	t.Parallel()

	b := NewCommandBridge("echo {N}", WithShell("/nonexistent/shell"))
	res := b.Certify(context.Background(), big.NewInt(97))

	assert.Equal(t, model.ExternalError, res.Status)
	assert.Equal(t, -1, res.ExitCode)
	assert.NotEmpty(t, res.Stderr)
	assert.Empty(t, res.Stdout)
	assert.Empty(t, res.CertificatePath)
}

func TestCertify_MissingExecutableIsFail(t *testing.T) {
	t.Parallel()

	b := NewCommandBridge("/nonexistent/ecpp-tool {N}")
	res := b.Certify(context.Background(), big.NewInt(97))

	assert.Equal(t, model.ExternalFail, res.Status)
	assert.Equal(t, 127, res.ExitCode)
}

func TestCertify_Timeout(t *testing.T) {
	t.Parallel()

	b := NewCommandBridge("sleep 5", WithTimeout(100*time.Millisecond))
	start := time.Now()
	res := b.Certify(context.Background(), big.NewInt(97))

	assert.Equal(t, model.ExternalTimeout, res.Status)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestCertify_CancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewCommandBridge("echo {N}")
	res := b.Certify(ctx, big.NewInt(97))
	assert.Equal(t, model.ExternalError, res.Status)

	limited := NewCommandBridge("echo {N}", WithLimiter(rate.NewLimiter(1, 1)))
	res = limited.Certify(ctx, big.NewInt(97))
	assert.Equal(t, model.ExternalError, res.Status)
	assert.Equal(t, "echo 97", res.Command)
}

func TestCertify_FindsCertificate(t *testing.T) {
	t.Parallel()

	dir := resolvedTempDir(t)
	b := NewCommandBridge("touch {N}.cert && echo wrote {N}.cert", WithDir(dir))
	res := b.Certify(context.Background(), big.NewInt(97))

	require.Equal(t, model.ExternalOK, res.Status)
	assert.Equal(t, filepath.Join(dir, "97.cert"), res.CertificatePath)
}

func TestCertify_CertificateOnStderrAbsolute(t *testing.T) {
	t.Parallel()

	dir := resolvedTempDir(t)
	cert := filepath.Join(dir, "proof.ecpp")
	require.NoError(t, os.WriteFile(cert, []byte("certificate"), 0o644))

	b := NewCommandBridge("echo certificate at "+cert+" >&2")
	res := b.Certify(context.Background(), big.NewInt(97))

	require.Equal(t, model.ExternalOK, res.Status)
	assert.Equal(t, cert, res.CertificatePath)
}

func TestCertify_NoCertificateFile(t *testing.T) {
	t.Parallel()

	dir := resolvedTempDir(t)
	b := NewCommandBridge("echo wrote missing.cert; printf '\\001\\377 garbage'", WithDir(dir))
	res := b.Certify(context.Background(), big.NewInt(97))

	assert.Equal(t, model.ExternalOK, res.Status)
	assert.Empty(t, res.CertificatePath)
}

func TestCertify_SilentTool(t *testing.T) {
	t.Parallel()

	res := NewCommandBridge("true").Certify(context.Background(), big.NewInt(97))
	assert.Equal(t, model.ExternalOK, res.Status)
	assert.Empty(t, res.Stdout)
	assert.Empty(t, res.Stderr)
	assert.Empty(t, res.CertificatePath)
}

func TestCertify_CustomSuffix(t *testing.T) {
	t.Parallel()

	dir := resolvedTempDir(t)
	b := NewCommandBridge("touch {N}.primo {N}.cert && echo {N}.primo {N}.cert",
		WithDir(dir), WithSuffixes(".primo"))
	res := b.Certify(context.Background(), big.NewInt(13))

	assert.Equal(t, filepath.Join(dir, "13.primo"), res.CertificatePath)
}

func TestCertifierFunc(t *testing.T) {
	t.Parallel()

	var c Certifier = CertifierFunc(func(_ context.Context, n *big.Int) model.ExternalResult {
		return model.ExternalResult{Status: model.ExternalOK, Command: "inline " + n.String()}
	})
	res := c.Certify(context.Background(), big.NewInt(5))
	assert.Equal(t, "inline 5", res.Command)
}
