package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	expected := []string{"score", "ablate", "sweep", "proth", "search", "certify", "batch", "bands", "records", "serve"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "proth-cli", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestProthCommand_Flags(t *testing.T) {
	for _, name := range []string{"k", "n", "trials", "seed", "witness-a", "format"} {
		assert.NotNil(t, prothCmd.Flags().Lookup(name), "proth should have --%s", name)
	}
	assert.Equal(t, "10", prothCmd.Flags().Lookup("trials").DefValue)
	assert.Equal(t, "2025", prothCmd.Flags().Lookup("seed").DefValue)
}

func TestCertifyCommand_Flags(t *testing.T) {
	for _, name := range []string{"in", "out", "N", "k", "n", "witness-a", "ecpp-cmd", "require-rigor", "format", "save", "beta"} {
		assert.NotNil(t, certifyCmd.Flags().Lookup(name), "certify should have --%s", name)
	}
}

func TestAblateCommand_Flags(t *testing.T) {
	flag := ablateCmd.Flags().Lookup("csv")
	require.NotNil(t, flag)
	assert.Equal(t, "ablation_minimal.csv.gz", flag.DefValue)

	flag = ablateCmd.Flags().Lookup("metrics")
	require.NotNil(t, flag)
	assert.Equal(t, "ablation_metrics.json", flag.DefValue)

	flag = ablateCmd.Flags().Lookup("K")
	require.NotNil(t, flag)
	assert.Equal(t, "-0.8", flag.DefValue)
}

func TestSweepCommand_GridDefaults(t *testing.T) {
	flag := sweepCmd.Flags().Lookup("betas")
	require.NotNil(t, flag)
	assert.Contains(t, flag.DefValue, "150")
	assert.Contains(t, flag.DefValue, "400")
	assert.Equal(t, "5000", sweepCmd.Flags().Lookup("N").DefValue)
}

func TestBandsCommand_Flags(t *testing.T) {
	flag := bandsCmd.Flags().Lookup("k-max")
	require.NotNil(t, flag)
	assert.Equal(t, "9", flag.DefValue)
	assert.NotNil(t, bandsCmd.Flags().Lookup("run"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestRecordsCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range recordsCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"list", "show", "ecpp", "ablations"} {
		assert.True(t, names[name], "records should have subcommand %q", name)
	}
	assert.Equal(t, "20", recordsListCmd.Flags().Lookup("limit").DefValue)
}
