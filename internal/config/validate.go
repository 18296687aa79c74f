package config

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/tabledriver/internal/engines"
	"github.com/roach88/tabledriver/internal/record"
)

//go:embed schema.cue
var schemaCUE string

// ValidationError is one configuration problem.
type ValidationError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *ValidationError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks cfg against the schema and the default engine registry.
func Validate(cfg *Config) error {
	return ValidateWith(cfg, engines.Default())
}

// ValidateWith checks cfg against the schema and reg's engine types.
func ValidateWith(cfg *Config, reg *engines.Registry) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	v := ctx.Encode(cfg)
	if err := v.Err(); err != nil {
		return formatCUEError(err)
	}
	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}

	seen := make(map[string]bool)
	for i, e := range cfg.Engines {
		field := fmt.Sprintf("engines[%d]", i)
		if !reg.Has(e.Type) {
			return &ValidationError{Field: field + ".type", Message: fmt.Sprintf("unknown engine type %q", e.Type)}
		}
		key := strings.ToLower(e.Name)
		if seen[key] {
			return &ValidationError{Field: field + ".name", Message: fmt.Sprintf("duplicate engine %q", e.Name)}
		}
		seen[key] = true
		if e.Default != "" {
			if _, err := record.ParseOutcome(e.Default); err != nil {
				return &ValidationError{Field: field + ".default", Message: err.Error()}
			}
		}
	}
	for i, name := range cfg.Preferred {
		if !matchesEngine(cfg.Engines, name) {
			return &ValidationError{
				Field:   fmt.Sprintf("preferred[%d]", i),
				Message: fmt.Sprintf("no engine named %q", name),
			}
		}
	}
	if _, err := cfg.Options(); err != nil {
		return &ValidationError{Field: "driver.language", Message: err.Error()}
	}
	return nil
}

// matchesEngine applies the router's rule: a preference names an engine
// when it is a case-insensitive substring of the engine name.
func matchesEngine(specs []engines.Spec, name string) bool {
	needle := strings.ToLower(name)
	for _, e := range specs {
		if strings.Contains(strings.ToLower(e.Name), needle) {
			return true
		}
	}
	return false
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := strings.Join(first.Path(), ".")
	if field == "" {
		field = "config"
	}
	msg, args := first.Msg()
	verr := &ValidationError{Field: field, Message: fmt.Sprintf(msg, args...)}
	if positions := cueerrors.Positions(first); len(positions) > 0 {
		verr.Pos = positions[0]
	}
	return verr
}
