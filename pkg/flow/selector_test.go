package flow

import "testing"

func TestSplitSelector(t *testing.T) {
	cases := []struct {
		in        string
		wantKind  string
		wantValue string
	}{
		{"#login", SelectorCSS, "#login"},
		{"css/#login", SelectorCSS, "#login"},
		{"xpath///button[2]", SelectorXPath, "//button[2]"},
		{"aria/Submit order", SelectorARIA, "Submit order"},
		{"text/Add to cart", SelectorText, "Add to cart"},
		{"pierce/.inner button", SelectorPierce, ".inner button"},
		{"div > span.price", SelectorCSS, "div > span.price"},
	}

	for _, tc := range cases {
		kind, value := SplitSelector(tc.in)
		if kind != tc.wantKind || value != tc.wantValue {
			t.Errorf("SplitSelector(%q) = %q,%q, want %q,%q", tc.in, kind, value, tc.wantKind, tc.wantValue)
		}
	}
}

func TestSelectorsDescribe(t *testing.T) {
	s := Selectors{
		{"iframe.payment", "aria/Card number"},
		{"#card"},
	}
	if got := s.Describe(); got != "aria/Card number" {
		t.Errorf("Describe() = %q, want innermost entry of first fallback", got)
	}

	var empty Selectors
	if got := empty.Describe(); got != "<none>" {
		t.Errorf("Describe() on empty = %q, want <none>", got)
	}
}

func TestSelectorsIsEmpty(t *testing.T) {
	var nilSel Selectors
	if !nilSel.IsEmpty() {
		t.Error("nil selectors should be empty")
	}

	if !(Selectors{{}}).IsEmpty() {
		t.Error("selectors with only empty chains should be empty")
	}

	if (Selectors{{"#a"}}).IsEmpty() {
		t.Error("non-empty selectors reported empty")
	}
}

func TestStepDescribe(t *testing.T) {
	cases := []struct {
		step Step
		want string
	}{
		{&NavigateStep{BaseStep: BaseStep{StepType: StepNavigate}, URL: "https://example.com"}, "navigate: https://example.com"},
		{&SetViewportStep{BaseStep: BaseStep{StepType: StepSetViewport}, Width: 1280, Height: 720}, "setViewport: 1280x720"},
		{&ClickStep{BaseStep: BaseStep{StepType: StepClick}, Selectors: Selectors{{"#buy"}}}, "click: #buy"},
		{&ChangeStep{BaseStep: BaseStep{StepType: StepChange}, Selectors: Selectors{{"#email"}}, Value: "x"}, `change: #email = "x"`},
		{&KeyDownStep{BaseStep: BaseStep{StepType: StepKeyDown}, Key: "Enter"}, "keyDown: Enter"},
		{&ScrollStep{BaseStep: BaseStep{StepType: StepScroll}}, "scroll"},
		{&WaitForExpressionStep{BaseStep: BaseStep{StepType: StepWaitForExpression}, Expression: "done"}, "waitForExpression: done"},
		{&CustomStep{BaseStep: BaseStep{StepType: StepCustom}, Name: "script"}, "customStep: script"},
		{&ImportStep{BaseStep: BaseStep{StepType: StepImport}, Target: "login.json"}, "import: login.json"},
	}

	for _, tc := range cases {
		if got := tc.step.Describe(); got != tc.want {
			t.Errorf("Describe() = %q, want %q", got, tc.want)
		}
	}
}

func TestFlowHasImports(t *testing.T) {
	f := &Flow{Steps: []Step{
		&NavigateStep{BaseStep: BaseStep{StepType: StepNavigate}},
		&ImportStep{BaseStep: BaseStep{StepType: StepImport}},
	}}
	if !f.HasImports() {
		t.Error("flow with import marker should report HasImports")
	}

	f = &Flow{Steps: []Step{&NavigateStep{BaseStep: BaseStep{StepType: StepNavigate}}}}
	if f.HasImports() {
		t.Error("flow without markers should not report HasImports")
	}
}
