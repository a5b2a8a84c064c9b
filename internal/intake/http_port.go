package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"expatdesk/internal/review/models"
	dErrors "expatdesk/pkg/domain-errors"
	"expatdesk/pkg/platform/httputil"
)

// HTTPPort talks to the review API.
type HTTPPort struct {
	baseURL string
	client  *http.Client
}

// NewHTTPPort builds a port against baseURL, e.g. http://localhost:8080.
func NewHTTPPort(baseURL string, client *http.Client) *HTTPPort {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPPort{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

type reviewBody struct {
	FormData     models.Answers `json:"form_data"`
	FormProgress []string       `json:"form_progress"`
	Status       string         `json:"status"`
}

type saveBody struct {
	FormData        models.Answers `json:"form_data"`
	FormProgress    []string       `json:"form_progress"`
	Status          string         `json:"status,omitempty"`
	EscalationFlags []string       `json:"escalation_flags,omitempty"`
	AmbiguityScore  *int           `json:"ambiguity_score,omitempty"`
}

func (p *HTTPPort) reviewURL(token, suffix string) string {
	return p.baseURL + "/reviews/" + url.PathEscape(token) + suffix
}

// Load fetches the review for token.
func (p *HTTPPort) Load(ctx context.Context, token string) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.reviewURL(token, ""), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	var body reviewBody
	if err := p.do(req, &body); err != nil {
		return nil, err
	}
	progress, err := models.ParseSections(body.FormProgress)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		FormData:     body.FormData,
		FormProgress: progress,
		Status:       models.Status(body.Status),
	}, nil
}

// Save writes the draft. Submissions go to the submit route.
func (p *HTTPPort) Save(ctx context.Context, token string, save SaveRequest) error {
	body := saveBody{
		FormData:     save.FormData,
		FormProgress: models.SectionStrings(save.FormProgress),
	}
	method, target := http.MethodPut, p.reviewURL(token, "")
	if save.Submit {
		method, target = http.MethodPost, p.reviewURL(token, "/submit")
		score := save.AmbiguityScore
		body.Status = string(models.StatusSubmitted)
		body.EscalationFlags = models.FlagStrings(save.EscalationFlags)
		body.AmbiguityScore = &score
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req, nil)
}

func (p *HTTPPort) do(req *http.Request, dst any) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "review service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if dst == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError rebuilds the domain error from the API envelope.
func decodeError(resp *http.Response) error {
	var env httputil.ErrorResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &env); err != nil || env.Error == "" {
		return dErrors.New(codeForStatus(resp.StatusCode), fmt.Sprintf("review service returned %d", resp.StatusCode))
	}
	msg := env.Description
	if msg == "" {
		msg = env.Error
	}
	return dErrors.New(dErrors.Code(env.Error), msg)
}

func codeForStatus(status int) dErrors.Code {
	switch status {
	case http.StatusNotFound:
		return dErrors.CodeNotFound
	case http.StatusConflict:
		return dErrors.CodeConflict
	case http.StatusBadRequest:
		return dErrors.CodeBadRequest
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return dErrors.CodeUnavailable
	default:
		return dErrors.CodeInternal
	}
}
