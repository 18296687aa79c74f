package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tabledriver/internal/config"
	"github.com/roach88/tabledriver/internal/engines"
	"github.com/roach88/tabledriver/internal/logs"
	"github.com/roach88/tabledriver/internal/record"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Tables []string // LEVEL:name pairs that must resolve
}

// ValidationIssue is one problem found by validate.
type ValidationIssue struct {
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool              `json:"valid"`
	Engines int               `json:"engines"`
	Errors  []ValidationIssue `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <config>",
		Short: "Validate a configuration without running",
		Long: `Validate a tabledriver configuration file.

Checks the file against the configuration schema, builds every configured
engine (loading keyword files) and, with --table, checks that the named
tables resolve under the project directory.

Example:
  tabledriver validate tabledriver.yaml
  tabledriver validate tabledriver.yaml --table CYCLE:Regression --table SUITE:Smoke`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Tables, "table", nil, "table that must resolve, as LEVEL:name (repeatable)")

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := LoadConfig(path, Overrides{})
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Code == ErrCodeNotFound {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidationErrors(formatter, []ValidationIssue{issueFromError(err)})
	}

	formatter.VerboseLog("Loaded %s: project %s, %d engine(s)", path, cfg.Project, len(cfg.Engines))
	issues := validateResources(cfg, opts.Tables, formatter)
	if len(issues) > 0 {
		return outputValidationErrors(formatter, issues)
	}
	return outputValidateSuccess(formatter, len(cfg.Engines))
}

// validateResources checks what the schema cannot: keyword files load and
// requested tables exist.
func validateResources(cfg *config.Config, tables []string, formatter *OutputFormatter) []ValidationIssue {
	var issues []ValidationIssue

	reg := engines.Default()
	for i, spec := range cfg.Engines {
		formatter.VerboseLog("Building engine: %s (%s)", spec.Name, spec.Type)
		if _, err := reg.Build(spec, engines.Env{Logs: logs.Discard{}}); err != nil {
			issues = append(issues, ValidationIssue{
				Code:    ErrCodeInvalidConfig,
				Field:   fmt.Sprintf("engines[%d]", i),
				Message: err.Error(),
			})
		}
	}

	dir := newDirSource(cfg)
	for _, t := range tables {
		src, err := parseTableRef(t, cfg.Tables.Separator)
		if err != nil {
			issues = append(issues, ValidationIssue{Code: ErrCodeGeneric, Field: "table", Message: err.Error()})
			continue
		}
		formatter.VerboseLog("Resolving table: %s", src)
		if _, err := dir.Resolve(src); err != nil {
			issues = append(issues, ValidationIssue{Code: ErrCodeTableNotFound, Field: "table", Message: err.Error()})
		}
	}
	return issues
}

// parseTableRef parses LEVEL:name.
func parseTableRef(ref, separator string) (record.Source, error) {
	levelText, name, ok := strings.Cut(ref, ":")
	if !ok || name == "" {
		return record.Source{}, fmt.Errorf("table %q: expected LEVEL:name", ref)
	}
	level, err := record.ParseTestLevel(levelText)
	if err != nil {
		return record.Source{}, fmt.Errorf("table %q: %w", ref, err)
	}
	return record.Source{Name: name, Level: level, Separator: separator}, nil
}

func issueFromError(err error) ValidationIssue {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return ValidationIssue{Code: ErrCodeGeneric, Message: err.Error()}
	}
	issue := ValidationIssue{Code: loadErr.Code, Message: loadErr.Message}
	if loadErr.Pos.IsValid() {
		issue.Line = loadErr.Pos.Line()
		issue.Column = loadErr.Pos.Column()
	}
	return issue
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, engineCount int) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Engines: engineCount})
	}

	fmt.Fprintln(formatter.Writer, "✓ Configuration valid")
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Missing inputs are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, issues []ValidationIssue) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: issues},
			Error: &CLIError{
				Code:    issues[0].Code,
				Message: issues[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, issue := range issues {
		if issue.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", issue.Line)
		}
		if issue.Field != "" {
			fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", issue.Code, issue.Field, issue.Message)
		} else {
			fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", issue.Code, issue.Message)
		}
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(issues)))
}
