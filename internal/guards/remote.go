package guards

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

	"github.com/rendis/opguard/internal/guard"
	"github.com/rendis/opguard/pkg/schema"
)

const maxRemoteBody = 4 << 20

// RemoteConfig holds defaults for guards served by a guardrails server.
type RemoteConfig struct {
	Client  *http.Client
	Timeout time.Duration
}

// RemoteProvider builds guards that call a guardrails server:
//
//	kind: remote
//	config: {base_url: "http://localhost:8000", guard: toxic_language, api_key: "...", timeout: 10s}
//
// Each call is a POST to {base_url}/guards/{guard}/validate and resolves as a
// deferred Task.
type RemoteProvider struct {
	cfg RemoteConfig
}

// NewRemoteProvider creates a RemoteProvider. A nil client means a new
// http.Client with cfg.Timeout.
func NewRemoteProvider(cfg RemoteConfig) *RemoteProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: cfg.Timeout}
	}
	return &RemoteProvider{cfg: cfg}
}

func (p *RemoteProvider) Kind() string { return "remote" }

func (p *RemoteProvider) New(def guard.Definition) (guard.Guard, error) {
	base, err := def.RequireString("base_url")
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("base_url %q must be an absolute http(s) URL", base)
	}

	remoteName := def.String("guard")
	if remoteName == "" {
		remoteName = def.Name
	}

	client := p.cfg.Client
	if t := def.String("timeout"); t != "" {
		d, err := time.ParseDuration(t)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", t, err)
		}
		client = &http.Client{Timeout: d, Transport: p.cfg.Client.Transport}
	}

	return &RemoteGuard{
		endpoint: strings.TrimRight(base, "/") + "/guards/" + url.PathEscape(remoteName) + "/validate",
		apiKey:   def.String("api_key"),
		client:   client,
	}, nil
}

// RemoteGuard validates text through a guardrails server.
type RemoteGuard struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

type remoteRequest struct {
	LLMOutput string         `json:"llmOutput"`
	NumReasks int            `json:"numReasks"`
	Metadata  map[string]any `json:"metadata"`
}

// remoteResponse is the server's validation outcome. ValidationPassed may be
// null while the server has not reached a verdict.
type remoteResponse struct {
	CallID           string          `json:"callId"`
	RawLLMOutput     *string         `json:"rawLlmOutput"`
	ValidatedOutput  json.RawMessage `json:"validatedOutput"`
	ValidationPassed *bool           `json:"validationPassed"`
	Error            *string         `json:"error"`
}

// Validate starts the HTTP call in the background.
func (g *RemoteGuard) Validate(ctx context.Context, llmOutput string, metadata guard.Metadata) *guard.Task {
	return guard.Go(func() (*guard.Result, error) {
		return g.call(ctx, llmOutput, metadata)
	})
}

func (g *RemoteGuard) call(ctx context.Context, text string, metadata guard.Metadata) (*guard.Result, error) {
	if metadata == nil {
		metadata = guard.Metadata{}
	}
	body, err := json.Marshal(remoteRequest{LLMOutput: text, Metadata: metadata})
	if err != nil {
		return nil, fmt.Errorf("encode guard request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build guard request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		req.Header.Set("x-api-key", g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "guard request to %s failed: %s", g.endpoint, err).WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBody))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "read guard response: %s", err).WithCause(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "guard server returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(data))).
			WithDetails(map[string]any{"status": resp.StatusCode})
	}

	var out remoteResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "decode guard response: %s", err).WithCause(err)
	}
	if out.Error != nil && *out.Error != "" {
		return nil, schema.NewErrorf(schema.ErrCodeExecution, "guard server error: %s", *out.Error).
			WithDetails(map[string]any{"call_id": out.CallID})
	}

	raw := text
	if out.RawLLMOutput != nil {
		raw = *out.RawLLMOutput
	}
	return &guard.Result{
		Outcome:         guard.OutcomeOfPtr(out.ValidationPassed),
		RawLLMOutput:    raw,
		ValidatedOutput: validatedText(out.ValidatedOutput),
	}, nil
}

// validatedText returns a string validatedOutput as is and any structured
// value re-encoded as JSON.
func validatedText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
