package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/kompass/internal/session"
)

// ExpectedSuffix marks an expectation file: <sym>.expected for a proof that
// must pass, <sym>.fail.expected for one that must fail.
const ExpectedSuffix = ".expected"

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update        bool // regenerate expectation files
	MaxIterations int
}

// CaseResult holds the result of a single start symbol.
type CaseResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Cases  []CaseResult `json:"cases"`
	Passed int          `json:"passed"`
	Failed int          `json:"failed"`
	Total  int          `json:"total"`
}

// testCase is one expectation file found in the project directory.
type testCase struct {
	name       string // file name without ExpectedSuffix
	start      string
	expectPass bool
	path       string
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <project-dir>",
		Short: "Check proofs against expectation files",
		Long: `Rebuild a project from scratch, then prove every start symbol that has an
expectation file in the project directory and compare the outcome and the
rendered proof with it.

  <sym>.expected       the proof of <sym> must pass
  <sym>.fail.expected  the proof of <sym> must fail

Lines mentioning spans are ignored in the comparison since they carry
absolute source paths.

Exit codes:
  0 - All cases passed
  1 - One or more cases failed
  2 - Command error (build failure, invalid paths, etc.)

Examples:
  kompass test ./tests/data/demo/main-crate
  kompass test ./main-crate --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate expectation files")
	cmd.Flags().IntVar(&opts.MaxIterations, "max-iterations", 2, "extensions per proof")

	return cmd
}

func runTests(opts *TestOptions, projectDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	if info, err := os.Stat(projectDir); err != nil || !info.IsDir() {
		msg := fmt.Sprintf("project directory not found: %s", projectDir)
		if werr := formatter.Error(ErrCodeNotFound, msg, nil); werr != nil {
			return werr
		}
		return NewExitError(ExitCommandError, msg)
	}

	cases, err := findTestCases(projectDir)
	if err != nil {
		return formatter.Fail("test", err)
	}

	a, err := opts.setup(cmd, projectDir)
	if err != nil {
		return formatter.Fail("test", err)
	}
	ctx := commandContext(cmd)
	defer a.close(ctx)

	if len(cases) == 0 {
		if opts.Format == "json" {
			return outputTestJSON(cmd, TestResult{Cases: []CaseResult{}})
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No expectation files found.")
		return nil
	}

	if _, err := a.orch.Execute(ctx, session.BuildRequest{ProjectDir: projectDir, Clean: true}); err != nil {
		return formatter.Fail("test", err)
	}

	result := TestResult{
		Cases: make([]CaseResult, 0, len(cases)),
		Total: len(cases),
	}
	for _, tc := range cases {
		res := runCase(a, tc, projectDir, opts, cmd)
		result.Cases = append(result.Cases, res)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// findTestCases lists the expectation files directly inside dir, sorted
// by name.
func findTestCases(dir string) ([]testCase, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var cases []testCase
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ExpectedSuffix) {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ExpectedSuffix)
		tc := testCase{name: name, start: name, expectPass: true, path: filepath.Join(dir, e.Name())}
		if start, ok := strings.CutSuffix(name, ".fail"); ok {
			tc.start = start
			tc.expectPass = false
		}
		cases = append(cases, tc)
	}
	sort.Slice(cases, func(i, j int) bool { return cases[i].name < cases[j].name })
	return cases, nil
}

// runCase proves one start symbol and checks it against its expectation.
func runCase(a *app, tc testCase, projectDir string, opts *TestOptions, cmd *cobra.Command) CaseResult {
	w := cmd.OutOrStdout()
	ctx := commandContext(cmd)
	text := opts.Format != "json"

	fail := func(errs ...string) CaseResult {
		if text {
			fmt.Fprintf(w, "✗ %s\n", tc.name)
			for _, e := range errs {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		return CaseResult{Name: tc.name, Pass: false, Errors: errs}
	}

	maxIterations := opts.MaxIterations
	res, err := a.orch.Execute(ctx, session.ProveRequest{
		ProjectDir:    projectDir,
		StartSymbol:   tc.start,
		MaxIterations: &maxIterations,
	})
	if err != nil {
		return fail(fmt.Sprintf("prove failed: %v", err))
	}
	proved := res.(*session.ProveResult)

	shown, err := a.orch.Execute(ctx, session.ShowRequest{ProjectDir: projectDir, ID: proved.Label})
	if err != nil {
		return fail(fmt.Sprintf("show failed: %v", err))
	}
	actual := stripSpans(shown.(*session.ShowResult).Lines)

	var errs []string
	if proved.Passed != tc.expectPass {
		errs = append(errs, fmt.Sprintf("unexpected proof outcome %s (passed=%t) for %s", proved.Verdict, proved.Passed, tc.name))
	}

	if opts.Update {
		if err := os.WriteFile(tc.path, []byte(actual), 0o644); err != nil {
			errs = append(errs, fmt.Sprintf("failed to update expectation file: %v", err))
		}
		if len(errs) > 0 {
			return fail(errs...)
		}
		if text {
			fmt.Fprintf(w, "✓ %s (expectation updated)\n", tc.name)
		}
		return CaseResult{Name: tc.name, Pass: true}
	}

	expected, err := os.ReadFile(tc.path)
	if err != nil {
		errs = append(errs, fmt.Sprintf("failed to read expectation file: %v", err))
	} else if strings.TrimRight(string(expected), "\n") != strings.TrimRight(actual, "\n") {
		errs = append(errs, "show output does not match expectation file (run with --update to regenerate)")
	}
	if len(errs) > 0 {
		return fail(errs...)
	}

	if text {
		fmt.Fprintf(w, "✓ %s\n", tc.name)
	}
	return CaseResult{Name: tc.name, Pass: true}
}

// stripSpans drops lines carrying source spans and joins the rest.
func stripSpans(lines []string) string {
	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		if !strings.Contains(l, "span:") {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n") + "\n"
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	status := "ok"
	if result.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   result,
	}

	if result.Failed > 0 {
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d case(s) failed", result.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d case(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test result as text.
func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d case(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All cases passed")
	return nil
}

