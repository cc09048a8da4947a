// Package flow handles parsing and representation of recorded user flow files.
package flow

// Flow represents one recorded user flow: a titled, ordered sequence of steps.
// Flows are immutable once resolved; after import resolution no element of
// Steps is an import marker.
type Flow struct {
	Title             string `json:"title"`
	TimeoutMs         int    `json:"timeout,omitempty"`
	SelectorAttribute string `json:"selectorAttribute,omitempty"`
	Steps             []Step `json:"steps"`

	// SourcePath is the file this flow was parsed from (empty for in-memory flows).
	SourcePath string `json:"-"`
}

// HasImports reports whether any step is still an import marker.
func (f *Flow) HasImports() bool {
	for _, step := range f.Steps {
		if step.Type() == StepImport {
			return true
		}
	}
	return false
}
