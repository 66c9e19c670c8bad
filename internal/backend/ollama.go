package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// DefaultOllamaURL is the loopback address of a stock Ollama daemon.
const DefaultOllamaURL = "http://127.0.0.1:11434"

// OllamaOptions tune generation on the local daemon. Zero values defer to the model defaults.
type OllamaOptions struct {
	Temperature float64
	NumPredict  int
}

// OllamaClient talks to a local Ollama daemon over its HTTP API.
type OllamaClient struct {
	baseURL    string
	model      string
	options    OllamaOptions
	httpClient *http.Client
}

// NewOllamaClient constructs a client for model at baseURL. The HTTP timeout
// is a backstop; callers bound individual requests through the context.
func NewOllamaClient(baseURL, model string, timeout time.Duration, opts OllamaOptions) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaURL
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &OllamaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		options: opts,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Name identifies the backend in logs.
func (c *OllamaClient) Name() string { return "ollama/" + c.model }

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Complete sends prompt to /api/generate and returns the full response text.
func (c *OllamaClient) Complete(ctx context.Context, prompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("ollama client not initialised")
	}
	if c.model == "" {
		return "", fmt.Errorf("ollama model not configured")
	}

	payload := generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Options: c.generationOptions(),
	}

	var response generateResponse
	if err := c.postJSON(ctx, c.resolvePath("/api/generate"), payload, &response); err != nil {
		return "", fmt.Errorf("ollama generate request failed: %w", err)
	}
	if response.Error != "" {
		return "", fmt.Errorf("ollama generate: %s", response.Error)
	}
	return response.Response, nil
}

// Ping checks that the daemon is reachable by listing local models.
func (c *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolvePath("/api/tags"), nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned %s", resp.Status)
	}
	return nil
}

func (c *OllamaClient) generationOptions() map[string]any {
	opts := make(map[string]any)
	if c.options.Temperature > 0 {
		opts["temperature"] = c.options.Temperature
	}
	if c.options.NumPredict > 0 {
		opts["num_predict"] = c.options.NumPredict
	}
	if len(opts) == 0 {
		return nil
	}
	return opts
}

func (c *OllamaClient) resolvePath(p string) string {
	cleaned := "/" + strings.TrimLeft(p, "/")
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return c.baseURL + cleaned
	}
	u.Path = path.Join(u.Path, cleaned)
	return u.String()
}

func (c *OllamaClient) postJSON(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(data))
		if resp.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotInstalled, msg)
		}
		return fmt.Errorf("ollama returned %s: %s", resp.Status, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classifyTransportError reports a refused connection as a missing runtime.
func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" && !opErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}
	return err
}
