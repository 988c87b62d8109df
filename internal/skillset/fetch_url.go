package skillset

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/corewire/assistant/internal/chatmodel"
)

// FetchURLSkill issues an HTTP GET against a host-allowlisted URL.
type FetchURLSkill struct {
	AllowedDomains []string
	Client         *http.Client
}

var _ Skill = (*FetchURLSkill)(nil)

func (s *FetchURLSkill) client() *http.Client {
	if s.Client != nil {
		return s.Client
	}
	return &http.Client{Timeout: 10 * time.Second}
}

func (s *FetchURLSkill) Name() string        { return "fetch_url" }
func (s *FetchURLSkill) Description() string { return "Fetch the contents of a URL via HTTP GET" }
func (s *FetchURLSkill) Permission() chatmodel.PermissionLevel {
	return chatmodel.PermissionNetwork
}

func (s *FetchURLSkill) InputSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{"type": "string", "description": "URL to fetch"},
		},
		"required": []any{"url"},
	}
}

func (s *FetchURLSkill) Execute(ctx context.Context, input map[string]any) (map[string]any, error) {
	rawURL, _ := input["url"].(string)
	if rawURL == "" {
		return nil, InvalidInput("missing required field: url")
	}

	host, err := validateDomain(rawURL, s.AllowedDomains)
	if err != nil {
		return nil, err
	}
	_ = host

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, InvalidInput("invalid URL: %v", err)
	}

	resp, err := s.client().Do(req)
	if err != nil {
		return nil, ExecutionFailed("HTTP request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ExecutionFailed("failed to read response: %v", err)
	}

	return map[string]any{"status": resp.StatusCode, "body": string(body)}, nil
}

// validateDomain parses rawURL and requires its host to exactly match an
// entry in allowedDomains.
func validateDomain(rawURL string, allowedDomains []string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", InvalidInput("invalid URL: %v", err)
	}
	host := parsed.Hostname()
	if host == "" {
		return "", InvalidInput("URL has no host")
	}
	for _, d := range allowedDomains {
		if d == host {
			return host, nil
		}
	}
	return "", Forbidden("domain %q is not in the allowlist", host)
}
