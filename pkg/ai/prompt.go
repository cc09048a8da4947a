package ai

import (
	"fmt"
	"strings"

	"github.com/recorder-dev/recorder-runner/pkg/executor"
)

const systemPrompt = `You are a browser test failure analyst. A recorded user
flow (Chrome DevTools Recorder format) failed during replay. You receive the
failing step, the error, and a snapshot of the page DOM at failure time.

Diagnose the most likely cause and respond in markdown with exactly these
sections:

## Diagnosis
One or two sentences naming the most likely cause.

## Evidence
What in the DOM or error supports the diagnosis.

## Suggested fix
A concrete change to the recording or the page under test. If a selector
broke, propose a selector that matches the current DOM.

Be specific and brief. Do not speculate beyond the provided context.`

// maxDOMChars caps how much of the DOM snapshot goes into the prompt.
const maxDOMChars = 30000

// buildAnalysisPrompt renders a failure into the user message for the model.
func buildAnalysisPrompt(req executor.AnalysisRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Flow: %s\n", req.FlowName)
	fmt.Fprintf(&b, "Failing step (index %d): %s\n", req.StepIndex, req.StepDetail)
	fmt.Fprintf(&b, "Step JSON:\n%s\n\n", req.StepJSON)
	fmt.Fprintf(&b, "Error: %s\n", req.ErrorMessage)

	if req.DOM != "" {
		dom := req.DOM
		if len(dom) > maxDOMChars {
			dom = dom[:maxDOMChars] + "\n<!-- truncated -->"
		}
		fmt.Fprintf(&b, "\nPage DOM at failure:\n```html\n%s\n```\n", dom)
	}

	return b.String()
}
