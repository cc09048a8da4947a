package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/recorder-dev/recorder-runner/pkg/core"
	"github.com/recorder-dev/recorder-runner/pkg/flow"
	"github.com/recorder-dev/recorder-runner/pkg/jsengine"
)

// envVarPattern matches ALL_CAPS identifiers that look like env variables
var envVarPattern = regexp.MustCompile(`\b([A-Z][A-Z0-9_]{2,})\b`)

// ScriptEngine handles JavaScript execution and variable management.
type ScriptEngine struct {
	js        *jsengine.Engine
	variables map[string]string
	flowDir   string // Directory of current flow (for resolving relative paths)
}

// NewScriptEngine creates a new script engine.
func NewScriptEngine() *ScriptEngine {
	return &ScriptEngine{
		js:        jsengine.New(),
		variables: make(map[string]string),
	}
}

// Close cleans up the script engine.
func (se *ScriptEngine) Close() {
	if se.js != nil {
		se.js.Close()
	}
}

// SetFlowDir sets the current flow directory for relative path resolution.
func (se *ScriptEngine) SetFlowDir(dir string) {
	se.flowDir = dir
}

// SetVariable sets a variable in both Go map and JS engine.
func (se *ScriptEngine) SetVariable(name, value string) {
	se.variables[name] = value
	se.js.SetVariable(name, value)
}

// SetVariables sets multiple variables.
func (se *ScriptEngine) SetVariables(vars map[string]string) {
	for k, v := range vars {
		se.SetVariable(k, v)
	}
}

// ImportSystemEnv imports system environment variables into the script engine.
// Only imports variables matching the pattern (uppercase with underscores).
func (se *ScriptEngine) ImportSystemEnv() {
	for _, env := range os.Environ() {
		parts := strings.SplitN(env, "=", 2)
		if len(parts) == 2 {
			name := parts[0]
			value := parts[1]
			if envVarPattern.MatchString(name) {
				se.SetVariable(name, value)
			}
		}
	}
}

// GetVariable returns a variable value.
func (se *ScriptEngine) GetVariable(name string) string {
	return se.variables[name]
}

// GetOutput returns the JS output variables.
func (se *ScriptEngine) GetOutput() map[string]interface{} {
	return se.js.GetOutput()
}

// SyncOutputToVariables copies JS output back to variables.
func (se *ScriptEngine) SyncOutputToVariables() {
	for k, v := range se.js.GetOutput() {
		se.SetVariable(k, fmt.Sprintf("%v", v))
	}
}

// ExpandVariables expands ${expr} and $VAR syntax in text.
func (se *ScriptEngine) ExpandVariables(text string) string {
	// First pass: JS engine for ${expression} syntax
	result, err := se.js.ExpandVariables(text)
	if err == nil {
		text = result
	}

	// Second pass: expand $VAR syntax (without braces)
	// Sort by length (longest first) to avoid partial matches
	names := make([]string, 0, len(se.variables))
	for name := range se.variables {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return len(names[i]) > len(names[j])
	})

	for _, name := range names {
		value := se.variables[name]
		text = expandDollarVar(text, name, value)
	}

	return text
}

// expandDollarVar replaces $VAR with value, checking word boundaries.
func expandDollarVar(text, name, value string) string {
	pattern := "$" + name
	idx := 0
	for {
		pos := strings.Index(text[idx:], pattern)
		if pos == -1 {
			break
		}
		pos += idx

		// Check if followed by alphanumeric (would be different variable)
		endPos := pos + len(pattern)
		if endPos < len(text) {
			next := text[endPos]
			if (next >= 'a' && next <= 'z') || (next >= 'A' && next <= 'Z') ||
				(next >= '0' && next <= '9') || next == '_' {
				idx = endPos
				continue
			}
		}

		text = text[:pos] + value + text[endPos:]
		idx = pos + len(value)
	}
	return text
}

// RunScript executes a JavaScript script.
func (se *ScriptEngine) RunScript(script string, env map[string]string) error {
	script = se.ExpandVariables(script)

	for k, v := range env {
		se.SetVariable(k, v)
	}

	// Pre-define potential env variables as undefined so a script that
	// probes an unset variable sees falsy instead of a ReferenceError.
	matches := envVarPattern.FindAllString(script, -1)
	for _, name := range matches {
		se.js.DefineUndefinedIfMissing(name)
	}

	if err := se.js.RunScript(script); err != nil {
		return err
	}

	se.SyncOutputToVariables()
	return nil
}

// ResolvePath resolves a relative path against the flow directory.
func (se *ScriptEngine) ResolvePath(path string) string {
	if filepath.IsAbs(path) || se.flowDir == "" {
		return path
	}
	return filepath.Join(se.flowDir, path)
}

// withEnvVars applies environment variables and returns a restore function.
func (se *ScriptEngine) withEnvVars(env map[string]string) func() {
	oldVars := make(map[string]string)
	for k, v := range env {
		oldVars[k] = se.GetVariable(k)
		se.SetVariable(k, v)
	}
	return func() {
		for k, v := range oldVars {
			se.SetVariable(k, v)
		}
	}
}

// ParseInt parses an integer from string, supporting variable expansion.
func (se *ScriptEngine) ParseInt(s string, defaultVal int) int {
	s = se.ExpandVariables(s)
	s = strings.ReplaceAll(s, "_", "") // Support 10_000 format
	if val, err := strconv.Atoi(s); err == nil {
		return val
	}
	return defaultVal
}

// ============================================
// Custom Step Execution
// ============================================

// Custom step names executed by the runner rather than the browser driver.
const (
	CustomScript       = "script"
	CustomSetVariables = "setVariables"
)

// IsRunnerStep reports whether a custom step is handled by the script engine
// instead of the driver.
func IsRunnerStep(step flow.Step) bool {
	s, ok := step.(*flow.CustomStep)
	if !ok {
		return false
	}
	return s.Name == CustomScript || s.Name == CustomSetVariables
}

// ExecuteCustom handles customStep kinds owned by the runner.
func (se *ScriptEngine) ExecuteCustom(step *flow.CustomStep) *core.CommandResult {
	switch step.Name {
	case CustomScript:
		return se.executeScript(step)
	case CustomSetVariables:
		return se.executeSetVariables(step)
	default:
		return &core.CommandResult{
			Success: false,
			Error:   core.ErrUnsupportedStep.WithMessage(fmt.Sprintf("unknown custom step: %s", step.Name)),
			Message: fmt.Sprintf("Custom step %q is not supported", step.Name),
		}
	}
}

// executeScript handles the "script" custom step. The script comes from the
// "script" parameter inline or from a file named by the "path" parameter.
func (se *ScriptEngine) executeScript(step *flow.CustomStep) *core.CommandResult {
	script, _ := step.Parameters["script"].(string)

	if path, ok := step.Parameters["path"].(string); ok && path != "" {
		filePath := se.ResolvePath(path)
		content, err := os.ReadFile(filePath)
		if err != nil {
			return &core.CommandResult{
				Success: false,
				Error:   core.ErrScriptFailed.WithCause(err),
				Message: fmt.Sprintf("Cannot read script file: %s", filePath),
			}
		}
		script = string(content)
	}

	if script == "" {
		return &core.CommandResult{
			Success: false,
			Error:   core.ErrScriptFailed.WithMessage("script step has no script or path parameter"),
			Message: "Script step requires a script or path parameter",
		}
	}

	if err := se.RunScript(script, nil); err != nil {
		return &core.CommandResult{
			Success: false,
			Error:   core.ErrScriptFailed.WithCause(err),
			Message: fmt.Sprintf("Script execution failed: %v", err),
		}
	}

	return &core.CommandResult{
		Success: true,
		Message: "Script executed successfully",
	}
}

// executeSetVariables handles the "setVariables" custom step. Every parameter
// becomes a variable, with values expanded before assignment.
func (se *ScriptEngine) executeSetVariables(step *flow.CustomStep) *core.CommandResult {
	for k, v := range step.Parameters {
		se.SetVariable(k, se.ExpandVariables(fmt.Sprintf("%v", v)))
	}
	return &core.CommandResult{
		Success: true,
		Message: fmt.Sprintf("Defined %d variable(s)", len(step.Parameters)),
	}
}

// ============================================
// Step Expansion
// ============================================

// ExpandStep expands variables in all string fields of a step.
// Note: This modifies the step in place.
func (se *ScriptEngine) ExpandStep(step flow.Step) {
	switch s := step.(type) {
	case *flow.NavigateStep:
		s.URL = se.ExpandVariables(s.URL)
	case *flow.ClickStep:
		s.Selectors = se.expandSelectors(s.Selectors)
	case *flow.DoubleClickStep:
		s.Selectors = se.expandSelectors(s.Selectors)
	case *flow.HoverStep:
		s.Selectors = se.expandSelectors(s.Selectors)
	case *flow.ScrollStep:
		s.Selectors = se.expandSelectors(s.Selectors)
	case *flow.ChangeStep:
		s.Value = se.ExpandVariables(s.Value)
		s.Selectors = se.expandSelectors(s.Selectors)
	case *flow.KeyDownStep:
		s.Key = se.ExpandVariables(s.Key)
	case *flow.KeyUpStep:
		s.Key = se.ExpandVariables(s.Key)
	case *flow.WaitForElementStep:
		s.Selectors = se.expandSelectors(s.Selectors)
	case *flow.WaitForExpressionStep:
		s.Expression = se.ExpandVariables(s.Expression)
	}
}

// expandSelectors expands variables in every selector alternative and
// returns a copy, leaving the original untouched.
func (se *ScriptEngine) expandSelectors(sels flow.Selectors) flow.Selectors {
	if len(sels) == 0 {
		return sels
	}
	expanded := make(flow.Selectors, len(sels))
	for i, group := range sels {
		expanded[i] = make([]string, len(group))
		for j, sel := range group {
			expanded[i][j] = se.ExpandVariables(sel)
		}
	}
	return expanded
}
