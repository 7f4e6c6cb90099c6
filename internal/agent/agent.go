// Package agent implements the five pipeline agents: parser, router,
// solver, verifier, and explainer. Each agent is one LLM round trip with a
// fixed role, a fixed temperature, and a documented fallback when the
// response cannot be decoded.
package agent

import (
	"context"
	"encoding/json"

	"github.com/nvandessel/mathmentor/internal/llm"
)

// Sampling temperatures per agent. The verifier runs coldest; the
// explainer warmest.
const (
	parserTemperature    = 0.3
	routerTemperature    = 0.3
	solverTemperature    = 0.3
	verifierTemperature  = 0.2
	explainerTemperature = 0.5
)

// runJSON performs one completion and decodes the JSON payload into out.
// A transport failure returns err and the caller propagates it. A response
// that arrives but cannot be decoded returns ok=false along with the raw
// text, and the caller substitutes its documented fallback.
func runJSON(ctx context.Context, client llm.Client, req llm.CompletionRequest, out any) (raw string, ok bool, err error) {
	req.JSONResponse = true
	raw, err = client.Complete(ctx, req)
	if err != nil {
		return "", false, err
	}
	if jsonErr := json.Unmarshal([]byte(llm.ExtractJSON(raw)), out); jsonErr != nil {
		return raw, false, nil
	}
	return raw, true, nil
}

// truncate limits s to at most n runes.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
