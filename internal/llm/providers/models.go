package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	llmerrors "github.com/ahrav/go-conclave/internal/llm/errors"
)

type modelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ListModels fetches the model IDs the endpoint serves from GET /models, in
// the order the endpoint lists them. Failures use the same taxonomy as chat
// calls, so a non-200 reply becomes a ProviderError carrying its status.
func (a *OpenAIAdapter) ListModels(ctx context.Context, client *http.Client) ([]string, error) {
	endpoint := a.config.BaseURL + "/models"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if a.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+a.config.APIKey)
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, llmerrors.Wrap(llmerrors.KindCancellationRequested, "", 0, ctx.Err())
		}
		return nil, &llmerrors.ProviderError{Provider: a.config.Name, Message: err.Error()}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, parseErrorResponse(a.config.Name, httpResp, body)
	}

	var list modelList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, malformedResponse(a.config.Name, fmt.Sprintf("decode model list: %v", err))
	}
	if list.Data == nil {
		return nil, malformedResponse(a.config.Name, "model list has no data field")
	}

	ids := make([]string, 0, len(list.Data))
	for _, m := range list.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}
