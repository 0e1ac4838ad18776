package chatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ModelsPath lists the relay's selectable models.
const ModelsPath = "/api/models"

// ModelOption is one selectable model.
type ModelOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type modelsResponse struct {
	Models  []ModelOption `json:"models"`
	Default string        `json:"default"`
}

// Models fetches the relay's model list and the name it uses when a turn names none.
func (s *Session) Models(ctx context.Context) ([]ModelOption, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+ModelsPath, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	for _, c := range s.cookies {
		req.AddCookie(c)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return nil, "", StatusError{Code: resp.StatusCode, Message: e.Error}
	}

	var res modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, "", fmt.Errorf("failed to decode models: %w", err)
	}
	return res.Models, res.Default, nil
}
