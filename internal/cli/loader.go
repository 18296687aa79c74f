package cli

import (
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue/token"

	"github.com/roach88/tabledriver/internal/config"
	"github.com/roach88/tabledriver/internal/record"
)

// LoadError represents an error that occurred while loading configuration.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Overrides are command-line values that replace configuration fields.
// Empty fields leave the configuration untouched.
type Overrides struct {
	Project   string
	Separator string
	Database  string
	Journal   string
	Vars      string
}

// LoadConfig loads and validates the configuration at path. An empty path
// returns the defaults. Overrides are applied after loading and the result
// is validated again.
func LoadConfig(path string, o Overrides) (*config.Config, error) {
	cfg := config.Default()
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("config file not found: %s", path)}
			}
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing config file: %v", err)}
		}
		loaded, err := config.Load(path)
		if err != nil {
			return nil, toLoadError(err)
		}
		cfg = loaded
	}

	if o.Project != "" {
		cfg.Project = o.Project
	}
	if o.Separator != "" {
		cfg.Tables.Separator = o.Separator
	}
	if o.Database != "" {
		cfg.Log.Store = o.Database
	}
	if o.Journal != "" {
		cfg.Log.Journal = o.Journal
	}
	if o.Vars != "" {
		cfg.Log.Vars = o.Vars
	}
	if err := config.Validate(cfg); err != nil {
		return nil, toLoadError(err)
	}

	info, err := os.Stat(cfg.Project)
	if err != nil || !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("project directory not found: %s", cfg.Project)}
	}
	return cfg, nil
}

// toLoadError keeps the CUE position of validation failures.
func toLoadError(err error) *LoadError {
	var verr *config.ValidationError
	if errors.As(err, &verr) {
		msg := verr.Message
		if verr.Field != "" {
			msg = verr.Field + ": " + verr.Message
		}
		return &LoadError{Code: ErrCodeInvalidConfig, Message: msg, Pos: verr.Pos}
	}
	return &LoadError{Code: ErrCodeInvalidConfig, Message: err.Error()}
}

// parseLevelFlag parses the --level flag.
func parseLevelFlag(s string) (record.TestLevel, error) {
	level, err := record.ParseTestLevel(s)
	if err != nil {
		return "", &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("invalid level %q: must be CYCLE, SUITE or STEP", s)}
	}
	return level, nil
}
