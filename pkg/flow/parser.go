// Package flow handles parsing and representation of recorded user flow files.
package flow

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
)

// ParseError represents a parsing error with location info.
type ParseError struct {
	Path    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ParseFile parses a single recorded flow file.
func ParseFile(path string) (*Flow, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- path is user-provided flow file
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data, path)
}

// rawFlow mirrors the document shape before step decoding.
type rawFlow struct {
	Title             string            `json:"title"`
	Timeout           int               `json:"timeout"`
	SelectorAttribute string            `json:"selectorAttribute"`
	Steps             []json.RawMessage `json:"steps"`
}

// Parse parses recorded flow JSON.
func Parse(data []byte, sourcePath string) (*Flow, error) {
	var raw rawFlow
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, wrapJSONError(sourcePath, data, err)
	}

	flow := &Flow{
		Title:             raw.Title,
		TimeoutMs:         raw.Timeout,
		SelectorAttribute: raw.SelectorAttribute,
		SourcePath:        sourcePath,
	}

	for i, rawStep := range raw.Steps {
		step, err := DecodeStep(rawStep)
		if err != nil {
			return nil, &ParseError{
				Path:    sourcePath,
				Message: fmt.Sprintf("step %d: %v", i, err),
			}
		}
		flow.Steps = append(flow.Steps, step)
	}

	return flow, nil
}

// DecodeStep unmarshals one step object, dispatching on its type discriminant.
// Unknown kinds decode into UnsupportedStep rather than failing the parse.
func DecodeStep(raw json.RawMessage) (Step, error) {
	typ := gjson.GetBytes(raw, "type")
	if !typ.Exists() {
		return nil, fmt.Errorf("step has no type field")
	}
	stepType := StepType(typ.String())

	var step Step
	switch stepType {
	case StepNavigate:
		step = &NavigateStep{}
	case StepSetViewport:
		step = &SetViewportStep{}
	case StepClose:
		step = &CloseStep{}
	case StepEmulateNetwork:
		step = &EmulateNetworkStep{}
	case StepClick:
		step = &ClickStep{}
	case StepDoubleClick:
		step = &DoubleClickStep{}
	case StepHover:
		step = &HoverStep{}
	case StepScroll:
		step = &ScrollStep{}
	case StepChange:
		step = &ChangeStep{}
	case StepKeyDown:
		step = &KeyDownStep{}
	case StepKeyUp:
		step = &KeyUpStep{}
	case StepWaitForElement:
		step = &WaitForElementStep{}
	case StepWaitForExpression:
		step = &WaitForExpressionStep{}
	case StepCustom:
		step = &CustomStep{}
	case StepImport:
		step = &ImportStep{}
	default:
		unsupported := &UnsupportedStep{Raw: append([]byte(nil), raw...)}
		if err := json.Unmarshal(raw, &unsupported.BaseStep); err != nil {
			return nil, err
		}
		return unsupported, nil
	}

	if err := json.Unmarshal(raw, step); err != nil {
		return nil, fmt.Errorf("decode %s step: %w", stepType, err)
	}
	return step, nil
}

// wrapJSONError converts a json error into a ParseError, recovering the
// source line from the byte offset when the decoder reports one.
func wrapJSONError(path string, data []byte, err error) error {
	parseErr := &ParseError{Path: path, Message: err.Error()}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		parseErr.Line = lineAtOffset(data, syntaxErr.Offset)
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		parseErr.Line = lineAtOffset(data, typeErr.Offset)
	}

	return parseErr
}

func lineAtOffset(data []byte, offset int64) int {
	if offset <= 0 || offset > int64(len(data)) {
		return 0
	}
	line := 1
	for _, b := range data[:offset] {
		if b == '\n' {
			line++
		}
	}
	return line
}

// ParseDirectory parses all flow JSON files in a directory tree.
// Report output directories are skipped.
func ParseDirectory(dir string, includeTitles, excludeTitles []string) ([]*Flow, error) {
	var flows []*Flow

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

		flow, parseErr := ParseFile(path)
		if parseErr != nil {
			fmt.Fprintf(os.Stderr, "warning: skipping %s: %v\n", path, parseErr)
			return nil
		}

		if ShouldIncludeFlow(flow, includeTitles, excludeTitles) {
			flows = append(flows, flow)
		}
		return nil
	})

	return flows, err
}

// ShouldIncludeFlow checks if a flow title matches the include/exclude globs.
func ShouldIncludeFlow(flow *Flow, includeTitles, excludeTitles []string) bool {
	if len(includeTitles) > 0 {
		included := false
		for _, pattern := range includeTitles {
			if matchTitle(pattern, flow.Title) {
				included = true
				break
			}
		}
		if !included {
			return false
		}
	}

	for _, pattern := range excludeTitles {
		if matchTitle(pattern, flow.Title) {
			return false
		}
	}

	return true
}

func matchTitle(pattern, title string) bool {
	ok, err := filepath.Match(pattern, title)
	if err != nil {
		return pattern == title
	}
	return ok
}
