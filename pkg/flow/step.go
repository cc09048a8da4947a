// Package flow handles parsing and representation of recorded user flow files.
package flow

import "strconv"

// StepType represents the type of step.
type StepType string

// Step type constants. These mirror the Chrome DevTools Recorder step
// catalogue, plus the import marker used to splice in external steps.
const (
	// Page control
	StepNavigate       StepType = "navigate"
	StepSetViewport    StepType = "setViewport"
	StepClose          StepType = "close"
	StepEmulateNetwork StepType = "emulateNetworkConditions"

	// Pointer interaction
	StepClick       StepType = "click"
	StepDoubleClick StepType = "doubleClick"
	StepHover       StepType = "hover"
	StepScroll      StepType = "scroll"

	// Input
	StepChange  StepType = "change"
	StepKeyDown StepType = "keyDown"
	StepKeyUp   StepType = "keyUp"

	// Waiting & assertions
	StepWaitForElement    StepType = "waitForElement"
	StepWaitForExpression StepType = "waitForExpression"

	// Extensions
	StepCustom StepType = "customStep"
	StepImport StepType = "import"
)

// Step is the interface for all flow steps.
type Step interface {
	Type() StepType
	Timeout() int
	Label() string
	Describe() string
}

// AssertedEvent is an event the recorder observed following a step,
// verified again on replay (e.g. a navigation to a given URL).
type AssertedEvent struct {
	Type  string `json:"type"`
	URL   string `json:"url,omitempty"`
	Title string `json:"title,omitempty"`
}

// BaseStep contains common fields for all steps.
type BaseStep struct {
	StepType       StepType        `json:"type"`
	TimeoutMs      int             `json:"timeout,omitempty"`
	Target         string          `json:"target,omitempty"`
	Frame          []int           `json:"frame,omitempty"`
	AssertedEvents []AssertedEvent `json:"assertedEvents,omitempty"`
	StepLabel      string          `json:"label,omitempty"`
}

// Type returns the step type.
func (b *BaseStep) Type() StepType { return b.StepType }

// Timeout returns the step's advisory timeout in milliseconds (0 = unset).
func (b *BaseStep) Timeout() int { return b.TimeoutMs }

// Label returns the step label.
func (b *BaseStep) Label() string { return b.StepLabel }

// Describe returns a human-readable description.
func (b *BaseStep) Describe() string { return string(b.StepType) }

// ============================================
// Page Control Steps
// ============================================

// NavigateStep loads a URL in the page.
type NavigateStep struct {
	BaseStep
	URL string `json:"url"`
}

// SetViewportStep resizes the page viewport.
type SetViewportStep struct {
	BaseStep
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	DeviceScaleFactor float64 `json:"deviceScaleFactor,omitempty"`
	IsMobile          bool    `json:"isMobile,omitempty"`
	HasTouch          bool    `json:"hasTouch,omitempty"`
	IsLandscape       bool    `json:"isLandscape,omitempty"`
}

// CloseStep closes the page.
type CloseStep struct {
	BaseStep
}

// EmulateNetworkStep throttles network conditions.
// Download/Upload are bytes per second, Latency is milliseconds.
type EmulateNetworkStep struct {
	BaseStep
	Download float64 `json:"download"`
	Upload   float64 `json:"upload"`
	Latency  float64 `json:"latency"`
}

// ============================================
// Pointer Interaction Steps
// ============================================

// ClickStep clicks an element.
type ClickStep struct {
	BaseStep
	Selectors Selectors `json:"selectors"`
	OffsetX   float64   `json:"offsetX,omitempty"`
	OffsetY   float64   `json:"offsetY,omitempty"`
	Button    string    `json:"button,omitempty"` // primary, auxiliary, secondary
	Duration  int       `json:"duration,omitempty"`
}

// DoubleClickStep double clicks an element.
type DoubleClickStep struct {
	BaseStep
	Selectors Selectors `json:"selectors"`
	OffsetX   float64   `json:"offsetX,omitempty"`
	OffsetY   float64   `json:"offsetY,omitempty"`
}

// HoverStep moves the pointer over an element.
type HoverStep struct {
	BaseStep
	Selectors Selectors `json:"selectors"`
}

// ScrollStep scrolls an element, or the page when no selectors are given.
type ScrollStep struct {
	BaseStep
	Selectors Selectors `json:"selectors,omitempty"`
	X         float64   `json:"x,omitempty"`
	Y         float64   `json:"y,omitempty"`
}

// ============================================
// Input Steps
// ============================================

// ChangeStep sets the value of an input, select or editable element.
type ChangeStep struct {
	BaseStep
	Selectors Selectors `json:"selectors"`
	Value     string    `json:"value"`
}

// KeyDownStep presses a key.
type KeyDownStep struct {
	BaseStep
	Key string `json:"key"`
}

// KeyUpStep releases a key.
type KeyUpStep struct {
	BaseStep
	Key string `json:"key"`
}

// ============================================
// Waiting & Assertion Steps
// ============================================

// WaitForElementStep waits until the element count matches.
// Operator is one of ">=", "==", "<=" (default "=="), Count defaults to 1.
type WaitForElementStep struct {
	BaseStep
	Selectors  Selectors         `json:"selectors"`
	Operator   string            `json:"operator,omitempty"`
	Count      int               `json:"count,omitempty"`
	Visible    *bool             `json:"visible,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Properties map[string]any    `json:"properties,omitempty"`
}

// WaitForExpressionStep waits until a page expression evaluates truthy.
type WaitForExpressionStep struct {
	BaseStep
	Expression string `json:"expression"`
}

// ============================================
// Extension Steps
// ============================================

// CustomStep carries a named, tool-defined action with free-form parameters.
type CustomStep struct {
	BaseStep
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ImportStep is a placeholder that splices in steps from an external source.
// It must be resolved away before execution; it is never itself executed.
type ImportStep struct {
	BaseStep
	From   string `json:"from"`
	Target string `json:"target"`
}

// UnsupportedStep represents a step kind this runner does not know.
// Parsing keeps going; executing one fails in the driver.
type UnsupportedStep struct {
	BaseStep
	Raw []byte `json:"-"`
}

// Describe returns a description marking the step unsupported.
func (s *UnsupportedStep) Describe() string {
	return string(s.StepType) + " (unsupported)"
}

// ============================================
// Describe() implementations for detailed output
// ============================================

// Describe returns a human-readable description of the navigate step.
func (s *NavigateStep) Describe() string {
	return "navigate: " + s.URL
}

// Describe returns a human-readable description of the viewport step.
func (s *SetViewportStep) Describe() string {
	return "setViewport: " + strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
}

// Describe returns a human-readable description of the click step.
func (s *ClickStep) Describe() string {
	return "click: " + s.Selectors.Describe()
}

// Describe returns a human-readable description of the double click step.
func (s *DoubleClickStep) Describe() string {
	return "doubleClick: " + s.Selectors.Describe()
}

// Describe returns a human-readable description of the hover step.
func (s *HoverStep) Describe() string {
	return "hover: " + s.Selectors.Describe()
}

// Describe returns a human-readable description of the scroll step.
func (s *ScrollStep) Describe() string {
	if len(s.Selectors) > 0 {
		return "scroll: " + s.Selectors.Describe()
	}
	return "scroll"
}

// Describe returns a human-readable description of the change step.
func (s *ChangeStep) Describe() string {
	return "change: " + s.Selectors.Describe() + " = \"" + s.Value + "\""
}

// Describe returns a human-readable description of the key down step.
func (s *KeyDownStep) Describe() string {
	return "keyDown: " + s.Key
}

// Describe returns a human-readable description of the key up step.
func (s *KeyUpStep) Describe() string {
	return "keyUp: " + s.Key
}

// Describe returns a human-readable description of the wait step.
func (s *WaitForElementStep) Describe() string {
	return "waitForElement: " + s.Selectors.Describe()
}

// Describe returns a human-readable description of the expression wait step.
func (s *WaitForExpressionStep) Describe() string {
	return "waitForExpression: " + s.Expression
}

// Describe returns a human-readable description of the custom step.
func (s *CustomStep) Describe() string {
	return "customStep: " + s.Name
}

// Describe returns a human-readable description of the import marker.
func (s *ImportStep) Describe() string {
	return "import: " + s.Target
}
