//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const binary = "bin/tabledriver"

// Default target - build the binary
var Default = Build

// Build builds the tabledriver binary
func Build() error {
	if err := os.MkdirAll("bin", 0755); err != nil {
		return err
	}
	return sh.RunV("go", "build", "-o", binary, "./cmd/tabledriver")
}

// Test runs the unit tests
func Test() error {
	return sh.RunV("go", "test", "./...")
}

// Scenarios runs the harness scenarios through the built binary
func Scenarios() error {
	mg.Deps(Build)
	return sh.RunV(binary, "test", "internal/harness/testdata/scenarios")
}

// Clean removes build artifacts
func Clean() error {
	return sh.Rm("bin")
}

// QA runs formatting, vet and tests
func QA() error {
	mg.SerialDeps(Lint.Format, Lint.Vet, Test)
	fmt.Println("QA complete!")
	return nil
}

// Lint namespace for linting commands
type Lint mg.Namespace

// Format checks code formatting
func (Lint) Format() error {
	out, err := sh.Output("gofmt", "-l", ".")
	if err != nil {
		return err
	}
	if out != "" {
		return fmt.Errorf("files need formatting:\n%s", out)
	}
	return nil
}

// Vet runs go vet
func (Lint) Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Staticcheck runs staticcheck when it is installed
func (Lint) Staticcheck() error {
	if _, err := exec.LookPath("staticcheck"); err != nil {
		fmt.Println("staticcheck not found (install: go install honnef.co/go/tools/cmd/staticcheck@latest)")
		return nil
	}
	return sh.RunV("staticcheck", "./...")
}
