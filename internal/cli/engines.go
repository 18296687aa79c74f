package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tabledriver/internal/engines"
)

// EnginesOptions holds flags for the engines command.
type EnginesOptions struct {
	*RootOptions
	Config string
}

// EngineInfo describes one configured engine.
type EngineInfo struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Preferred bool   `json:"preferred"`
	Keywords  string `json:"keywords,omitempty"`
	Rules     int    `json:"rules"`
}

// EnginesResult is the JSON payload of the engines command.
type EnginesResult struct {
	Types      []string     `json:"types"`
	Configured []EngineInfo `json:"configured,omitempty"`
}

// NewEnginesCommand creates the engines command.
func NewEnginesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnginesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "engines",
		Short: "List engine types and configured engines",
		Long: `List the engine types this build can construct and, with --config,
the engines a configuration declares in routing order.

Example:
  tabledriver engines
  tabledriver engines --config tabledriver.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngines(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "path to configuration file")

	return cmd
}

func runEngines(opts *EnginesOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	result := EnginesResult{Types: engines.Default().Types()}

	if opts.Config != "" {
		cfg, err := LoadConfig(opts.Config, Overrides{})
		if err != nil {
			code := ErrCodeInvalidConfig
			var le *LoadError
			if errors.As(err, &le) {
				code = le.Code
			}
			_ = formatter.Error(code, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load configuration", err)
		}
		for _, spec := range cfg.Engines {
			result.Configured = append(result.Configured, EngineInfo{
				Name:      spec.Name,
				Type:      spec.Type,
				Preferred: isPreferred(spec.Name, cfg.Preferred),
				Keywords:  spec.Keywords,
				Rules:     len(spec.Rules),
			})
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(renderEngines(result))
}

// isPreferred matches preference names the way the router does: by
// case-insensitive substring of the engine name.
func isPreferred(name string, preferred []string) bool {
	lower := strings.ToLower(name)
	for _, p := range preferred {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func renderEngines(result EnginesResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Engine types: %s", strings.Join(result.Types, ", "))
	if len(result.Configured) == 0 {
		return sb.String()
	}
	sb.WriteString("\n\nConfigured engines:")
	for i, e := range result.Configured {
		marker := " "
		if e.Preferred {
			marker = "*"
		}
		fmt.Fprintf(&sb, "\n %s %d. %s (%s, %d rules)", marker, i+1, e.Name, e.Type, e.Rules)
		if e.Keywords != "" {
			fmt.Fprintf(&sb, " keywords=%s", e.Keywords)
		}
	}
	return sb.String()
}
