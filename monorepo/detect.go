package monorepo

import (
	"context"
	"fmt"
)

// DetectTool returns the first configured tool in priority order. A broken
// tool configuration, such as an unparseable turbo.json, is an error.
func DetectTool(ctx context.Context, opts HandlerOptions) (Tool, bool, error) {
	for _, h := range Handlers() {
		ok, err := h.IsConfigured(ctx, opts)
		if err != nil {
			return "", false, fmt.Errorf("failed to check %s configuration: %w", h.Tool(), err)
		}
		if ok {
			return h.Tool(), true, nil
		}
	}
	return "", false, nil
}
