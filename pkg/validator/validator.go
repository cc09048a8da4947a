// Package validator checks recorded flow files before execution. It parses
// every file upfront, verifies import targets, and collects errors and
// warnings without running anything.
package validator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/recorder-dev/recorder-runner/pkg/flow"
)

// ValidationError represents a validation error with context.
type ValidationError struct {
	File    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Result contains the validation result.
type Result struct {
	// Files is the list of flow file paths in execution order.
	Files []string
	// Flows holds the parsed flows, parallel to Files.
	Flows []*flow.Flow
	// Errors contains all validation errors found.
	Errors []error
	// Warnings are findings that do not block execution.
	Warnings []string
}

// IsValid returns true if there are no validation errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

// Validator validates flow files.
type Validator struct {
	includeTitles []string
	excludeTitles []string
}

// New creates a new Validator. Title globs filter which flows are validated
// when scanning a directory.
func New(includeTitles, excludeTitles []string) *Validator {
	return &Validator{
		includeTitles: includeTitles,
		excludeTitles: excludeTitles,
	}
}

// Validate validates a file or directory of recorded flows.
func (v *Validator) Validate(path string) *Result {
	result := &Result{}

	info, err := os.Stat(path)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    path,
			Message: fmt.Sprintf("cannot access: %v", err),
		})
		return result
	}

	var files []string
	if info.IsDir() {
		files, err = collectFlowFiles(path)
		if err != nil {
			result.Errors = append(result.Errors, &ValidationError{
				File:    path,
				Message: fmt.Sprintf("failed to scan directory: %v", err),
			})
			return result
		}
		if len(files) == 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: no flow files found", path))
		}
	} else {
		files = []string{path}
	}

	for _, file := range files {
		v.validateFile(file, info.IsDir(), result)
	}

	return result
}

// collectFlowFiles finds all .json flow files in a directory tree,
// skipping report output.
func collectFlowFiles(dir string) ([]string, error) {
	var files []string

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == "reports" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.ToLower(filepath.Ext(path)) != ".json" {
			return nil
		}
		if info.Name() == "report.json" {
			return nil
		}
		files = append(files, path)
		return nil
	})

	return files, err
}

// validateFile parses and checks one flow file. Title filters apply only to
// directory scans; naming a file explicitly always validates it.
func (v *Validator) validateFile(filePath string, filtered bool, result *Result) {
	f, err := flow.ParseFile(filePath)
	if err != nil {
		result.Errors = append(result.Errors, &ValidationError{
			File:    filePath,
			Message: fmt.Sprintf("parse error: %v", err),
		})
		return
	}

	if filtered && !flow.ShouldIncludeFlow(f, v.includeTitles, v.excludeTitles) {
		return
	}

	if len(f.Steps) == 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: flow has no steps", filePath))
	}
	if f.Title == "" {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: flow has no title", filePath))
	}

	v.checkSteps(f, filePath, result)

	result.Files = append(result.Files, filePath)
	result.Flows = append(result.Flows, f)
}

// checkSteps verifies per-step constraints: import targets must exist and use
// a supported source, element steps need selectors, and unknown step kinds
// are surfaced before a driver trips over them.
func (v *Validator) checkSteps(f *flow.Flow, filePath string, result *Result) {
	baseDir := filepath.Dir(filePath)

	for i, step := range f.Steps {
		switch s := step.(type) {
		case *flow.ImportStep:
			if s.From != flow.ImportSourceFile {
				result.Errors = append(result.Errors, &ValidationError{
					File:    filePath,
					Message: fmt.Sprintf("step %d: unsupported import source %q", i, s.From),
				})
				continue
			}
			target := s.Target
			if !filepath.IsAbs(target) {
				target = filepath.Join(baseDir, target)
			}
			if _, err := os.Stat(target); err != nil {
				result.Errors = append(result.Errors, &ValidationError{
					File:    filePath,
					Message: fmt.Sprintf("step %d: import target %q not found", i, s.Target),
				})
			}

		case *flow.ClickStep:
			v.checkSelectors(s.Selectors, i, "click", filePath, result)
		case *flow.DoubleClickStep:
			v.checkSelectors(s.Selectors, i, "doubleClick", filePath, result)
		case *flow.HoverStep:
			v.checkSelectors(s.Selectors, i, "hover", filePath, result)
		case *flow.ChangeStep:
			v.checkSelectors(s.Selectors, i, "change", filePath, result)
		case *flow.WaitForElementStep:
			v.checkSelectors(s.Selectors, i, "waitForElement", filePath, result)

		case *flow.NavigateStep:
			if s.URL == "" {
				result.Errors = append(result.Errors, &ValidationError{
					File:    filePath,
					Message: fmt.Sprintf("step %d: navigate has no url", i),
				})
			}

		case *flow.WaitForExpressionStep:
			if s.Expression == "" {
				result.Errors = append(result.Errors, &ValidationError{
					File:    filePath,
					Message: fmt.Sprintf("step %d: waitForExpression has no expression", i),
				})
			}

		case *flow.UnsupportedStep:
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("%s: step %d: unknown step type %q", filePath, i, s.Type()))
		}
	}
}

// checkSelectors flags element steps recorded without any selector.
func (v *Validator) checkSelectors(sel flow.Selectors, idx int, kind, filePath string, result *Result) {
	if sel.IsEmpty() {
		result.Errors = append(result.Errors, &ValidationError{
			File:    filePath,
			Message: fmt.Sprintf("step %d: %s has no selectors", idx, kind),
		})
	}
}
