// Package flow handles parsing and representation of recorded user flow files.
package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
)

// ImportSourceFile is the only import source the resolver implements.
// Other declared sources (url, ...) fail with UnsupportedSourceError.
const ImportSourceFile = "file"

// ImportError reports a failure to read, parse or use an import target.
type ImportError struct {
	Target string
	Cause  error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import %q: %v", e.Target, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ImportError) Unwrap() error { return e.Cause }

// UnsupportedSourceError reports an import marker whose source kind the
// resolver does not implement.
type UnsupportedSourceError struct {
	Source string
}

func (e *UnsupportedSourceError) Error() string {
	return fmt.Sprintf("unsupported import source %q", e.Source)
}

var errMissingSteps = errors.New("document has no steps field")

// Resolve expands every import marker in the flow's step sequence into the
// steps read from its target, preserving surrounding order. Resolution is a
// single left-to-right pass: imported steps are spliced in as-is and are not
// re-scanned for nested markers. The input flow is not mutated; the returned
// flow shares its metadata with the expanded step sequence.
func Resolve(f *Flow) (*Flow, error) {
	resolved := &Flow{
		Title:             f.Title,
		TimeoutMs:         f.TimeoutMs,
		SelectorAttribute: f.SelectorAttribute,
		SourcePath:        f.SourcePath,
	}
	if f.Steps != nil {
		resolved.Steps = make([]Step, 0, len(f.Steps))
	}

	for _, step := range f.Steps {
		marker, ok := step.(*ImportStep)
		if !ok {
			resolved.Steps = append(resolved.Steps, step)
			continue
		}

		if marker.From != ImportSourceFile {
			return nil, &UnsupportedSourceError{Source: marker.From}
		}

		imported, err := readImportedSteps(marker.Target, f.SourcePath)
		if err != nil {
			return nil, err
		}
		resolved.Steps = append(resolved.Steps, imported...)
	}

	return resolved, nil
}

// readImportedSteps reads the target file and decodes its steps array.
// Relative targets resolve against the importing flow's directory.
func readImportedSteps(target, sourcePath string) ([]Step, error) {
	path := target
	if sourcePath != "" && !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(sourcePath), path)
	}

	data, err := os.ReadFile(path) //#nosec G304 -- target comes from the user's flow file
	if err != nil {
		return nil, &ImportError{Target: target, Cause: err}
	}

	var doc struct {
		Steps []json.RawMessage `json:"steps"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ImportError{Target: target, Cause: err}
	}
	if !gjson.GetBytes(data, "steps").Exists() {
		return nil, &ImportError{Target: target, Cause: errMissingSteps}
	}

	steps := make([]Step, 0, len(doc.Steps))
	for i, rawStep := range doc.Steps {
		step, err := DecodeStep(rawStep)
		if err != nil {
			return nil, &ImportError{Target: target, Cause: fmt.Errorf("step %d: %w", i, err)}
		}
		steps = append(steps, step)
	}

	return steps, nil
}
