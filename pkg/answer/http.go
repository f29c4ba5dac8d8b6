package answer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// HTTPService posts questions to a JSON answer endpoint.
type HTTPService struct {
	URL    string
	Client *http.Client
}

var _ Service = (*HTTPService)(nil)

func NewHTTPService(url string, timeout time.Duration) *HTTPService {
	return &HTTPService{URL: url, Client: &http.Client{Timeout: timeout}}
}

func (s *HTTPService) Ask(ctx context.Context, r Request) (*Response, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("answer service request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Status: resp.StatusCode, Message: errorMessage(body)}
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if out.Matches == nil {
		out.Matches = []Match{}
	}
	return &out, nil
}

const maxErrorMessage = 300

// errorMessage prefers a JSON {"error"|"detail"|"message"} field over the raw body.
func errorMessage(body []byte) string {
	var envelope map[string]interface{}
	if json.Unmarshal(body, &envelope) == nil {
		for _, key := range []string{"error", "detail", "message"} {
			if msg, ok := envelope[key].(string); ok && msg != "" {
				return msg
			}
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > maxErrorMessage {
		cut := maxErrorMessage
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut]
	}
	return msg
}
