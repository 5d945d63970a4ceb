// Package ecpp bridges the funnel to an out-of-process full-rigor certifier
// (typically an ECPP tool). The bridge is a thin proxy: it runs a command,
// captures its output, exit status and wall time, and sniffs the output for a
// certificate file name. It never retries and never interprets the tool.
package ecpp

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/big"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/proth-cli/internal/model"
)

// Placeholder is substituted literally with N in base 10.
const Placeholder = "{N}"

// DefaultSuffixes are the certificate file extensions recognized in output.
var DefaultSuffixes = []string{".ecpp", ".cert"}

// Certifier is the narrow contract for a full-rigor certifier.
type Certifier interface {
	Certify(ctx context.Context, n *big.Int) model.ExternalResult
}

// CertifierFunc adapts a function to Certifier.
type CertifierFunc func(ctx context.Context, n *big.Int) model.ExternalResult

// Certify implements Certifier.
func (f CertifierFunc) Certify(ctx context.Context, n *big.Int) model.ExternalResult {
	return f(ctx, n)
}

// CommandBridge runs a shell command template for each candidate.
type CommandBridge struct {
	template string
	shell    string
	dir      string
	timeout  time.Duration
	suffixes []string
	limiter  *rate.Limiter
}

// Option configures a CommandBridge.
type Option func(*CommandBridge)

// WithTimeout kills the command after d and reports status timeout. Zero
// disables the deadline.
func WithTimeout(d time.Duration) Option {
	return func(b *CommandBridge) { b.timeout = d }
}

// WithSuffixes overrides the recognized certificate suffixes.
func WithSuffixes(suffixes ...string) Option {
	return func(b *CommandBridge) {
		if len(suffixes) > 0 {
			b.suffixes = suffixes
		}
	}
}

// WithShell overrides the shell used to run the command (default "sh").
func WithShell(shell string) Option {
	return func(b *CommandBridge) {
		if shell != "" {
			b.shell = shell
		}
	}
}

// WithDir runs the command in dir; relative certificate names resolve there.
func WithDir(dir string) Option {
	return func(b *CommandBridge) { b.dir = dir }
}

// WithLimiter throttles process launches.
func WithLimiter(l *rate.Limiter) Option {
	return func(b *CommandBridge) { b.limiter = l }
}

// NewCommandBridge creates a bridge for a command template containing {N}.
func NewCommandBridge(template string, opts ...Option) *CommandBridge {
	b := &CommandBridge{
		template: template,
		shell:    "sh",
		suffixes: DefaultSuffixes,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// BuildCommand substitutes n into template.
func BuildCommand(template string, n *big.Int) string {
	return strings.ReplaceAll(template, Placeholder, n.String())
}

// Certify runs the command for n. Every failure mode is captured in the
// returned result; none is fatal to the caller.
func (b *CommandBridge) Certify(ctx context.Context, n *big.Int) model.ExternalResult {
	command := BuildCommand(b.template, n)
	res := model.ExternalResult{Command: command, ExitCode: -1}
	log := zap.L().With(zap.String("component", "ecpp"), zap.String("cmd", command))

	if b.limiter != nil {
		if err := b.limiter.Wait(ctx); err != nil {
			res.Status = model.ExternalError
			res.Stderr = err.Error()
			return res
		}
	}

	runCtx := ctx
	if b.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, b.shell, "-c", command)
	cmd.Dir = b.dir
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	res.ElapsedMS = math.Round(float64(time.Since(start).Microseconds())/10) / 100
	res.Stdout = stdout.String()
	res.Stderr = stderr.String()
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		res.Status = model.ExternalOK
	case b.timeout > 0 && errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		res.Status = model.ExternalTimeout
	case ctx.Err() != nil:
		res.Status = model.ExternalError
		res.Stderr = appendLine(res.Stderr, ctx.Err().Error())
	case errors.As(err, &exitErr):
		res.Status = model.ExternalFail
	default:
		res.Status = model.ExternalError
		res.Stderr = appendLine(res.Stderr, err.Error())
	}

	res.CertificatePath = b.findCertificate(res.Stdout, res.Stderr)

	log.Info("external certifier finished",
		zap.String("status", string(res.Status)),
		zap.Int("exit_code", res.ExitCode),
		zap.Float64("elapsed_ms", res.ElapsedMS),
		zap.String("cert_path", res.CertificatePath),
	)
	return res
}

// findCertificate returns the resolved path of the last output token that
// carries a certificate suffix and names an existing file.
func (b *CommandBridge) findCertificate(stdout, stderr string) string {
	var found string
	tokens := append(strings.Fields(stdout), strings.Fields(stderr)...)
	for _, tok := range tokens {
		if !hasAnySuffix(tok, b.suffixes) {
			continue
		}
		path := tok
		if !filepath.IsAbs(path) && b.dir != "" {
			path = filepath.Join(b.dir, path)
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		if resolved, err := filepath.EvalSymlinks(path); err == nil {
			path = resolved
		}
		found = path
	}
	return found
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

func appendLine(s, line string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s + line
	}
	return s + "\n" + line
}
