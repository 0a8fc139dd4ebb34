package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tensorplex-labs/socialchoice/internal/ballot"
	"github.com/tensorplex-labs/socialchoice/internal/report"
	"github.com/tensorplex-labs/socialchoice/internal/rules"
)

const testBallots = "# NUMBER ALTERNATIVES: 3\n2: 1,2,3\n1: 2,3,1\n"

const partialBallots = "# NUMBER ALTERNATIVES: 4\n3: {1,2},3\n1: 4\n"

func writeBallots(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "votes.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) {
	t.Helper()
	rootCmd.SetArgs(append(args, "--seed", "5", "--log-level", "error"))
	require.NoError(t, rootCmd.Execute())
}

func TestRuleFromFlags(t *testing.T) {
	ruleName, approvalK, weightsText = rules.RuleKApproval, 2, ""
	spec, err := ruleFromFlags()
	require.NoError(t, err)
	assert.Equal(t, "k_approval(2)", spec.Label())

	weightsText = "3, 1, 0"
	spec, err = ruleFromFlags()
	require.NoError(t, err)
	assert.Equal(t, rules.RuleScoring, spec.Name)
	assert.Equal(t, []float64{3, 1, 0}, spec.Weights)

	weightsText = "[1, oops]"
	_, err = ruleFromFlags()
	assert.Error(t, err)
	weightsText = ""
}

func TestScoreCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeBallots(t, dir, testBallots)
	output := filepath.Join(dir, "scores.json")

	weightsText = ""
	execute(t, "score", "--input", input, "--rule", "plurality", "--output", output)

	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	var got scoreReport
	require.NoError(t, sonic.Unmarshal(raw, &got))
	assert.Equal(t, "plurality", got.Rule)
	assert.EqualValues(t, 1, got.Winner)
	assert.Equal(t, 3, got.Voters)
	assert.InDelta(t, 2.0/3.0, got.Probabilities[1], 1e-12)
	assert.Equal(t, uint64(5), appConfig.Seed)
}

func TestNormalizeCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeBallots(t, dir, partialBallots)
	output := filepath.Join(dir, "normalized.txt")

	execute(t, "normalize", "--input", input, "--output", output)

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	parsed, err := ballot.Parse(f)
	require.NoError(t, err)
	assert.Equal(t, 4, parsed.Alternatives)
	assert.True(t, parsed.Store.IsStrict())
	assert.True(t, parsed.Store.IsComplete(4))
	assert.Equal(t, 4, parsed.Store.Total())
}

func TestGenerateCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeBallots(t, dir, testBallots)
	output := filepath.Join(dir, "values.txt.zst")

	execute(t, "generate", "--input", input, "--output", output,
		"--distribution", "gamma", "--shape", "2", "--repeat", "2",
		"--normalization", "unit_sum", "--missing-zero=true")

	r, err := report.Open(output)
	require.NoError(t, err)
	raw, err := io.ReadAll(r)
	require.NoError(t, r.Close())
	require.NoError(t, err)

	text := string(raw)
	assert.True(t, strings.HasPrefix(text, "# gamma(2) pass 0, 3 alternatives\n"))
	assert.Contains(t, text, "# gamma(2) pass 1, 3 alternatives\n")
	assert.Equal(t, 2*(1+3), strings.Count(text, "\n"))
}

func TestDistortionCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeBallots(t, dir, testBallots)
	output := filepath.Join(dir, "distortion.json")

	weightsText = ""
	execute(t, "distortion", "--input", input, "--output", output,
		"--rule", "plurality", "--distribution", "uniform", "--repeat", "1", "--shape", "1",
		"--normalization", "none", "--missing-zero=true", "--trials", "50")

	raw, err := os.ReadFile(output)
	require.NoError(t, err)
	var got distortionReport
	require.NoError(t, sonic.Unmarshal(raw, &got))
	assert.Equal(t, "plurality", got.Rule)
	assert.Equal(t, "uniform", got.Distribution)
	assert.Equal(t, "1", got.Deterministic.Winner)
	assert.GreaterOrEqual(t, got.Deterministic.Distortion, 1.0)
	assert.GreaterOrEqual(t, got.AverageDistortion, 1.0)
	assert.Equal(t, 50, got.Trials)
}

func TestExperimentCommand(t *testing.T) {
	dir := t.TempDir()
	input := writeBallots(t, dir, testBallots)
	table := filepath.Join(dir, "out", "table.csv")
	summary := filepath.Join(dir, "out", "summary.json")
	experiment := filepath.Join(dir, "experiment.yaml")
	require.NoError(t, os.WriteFile(experiment, []byte(fmt.Sprintf(`
input: %s
trials: 20
distributions:
  - name: uniform
    repeat: 2
  - name: power
    shape: 2
rules:
  - name: plurality
  - name: borda
output:
  table: %s
  summary: %s
`, input, table, summary)), 0o644))

	execute(t, "experiment", experiment)

	csv, err := os.ReadFile(table)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "rule,uniform,power(2)", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "plurality,"))
	assert.True(t, strings.HasPrefix(lines[2], "borda,"))

	raw, err := os.ReadFile(summary)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"session_id"`)
}
