package extension

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/runger/palette/internal/broker"
)

// providerHandler adapts a Provider to broker.Handler.
type providerHandler struct {
	provider Provider
}

func (h *providerHandler) HandleSearch(ctx context.Context, commandID, query string) (json.RawMessage, error) {
	results, err := h.provider.HandleSearch(ctx, commandID, SearchParams{Query: query})
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []SearchResult{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}
	return data, nil
}

func (h *providerHandler) HandleAction(ctx context.Context, commandID string, req broker.ActionRequest) (json.RawMessage, error) {
	out, err := h.provider.HandleAction(ctx, commandID, ActionParams{
		ActionID: req.ActionID,
		ResultID: req.ResultID,
		Metadata: req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, nil
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode action result: %w", err)
	}
	return data, nil
}
