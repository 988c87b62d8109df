package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/corewire/assistant/internal/chatmodel"
	"github.com/corewire/assistant/internal/config"
	"github.com/corewire/assistant/internal/llmprovider"
	"github.com/corewire/assistant/internal/reload"
)

// testProviderTimeout bounds the connectivity check POST/GET in
// handleTestProvider, matching the original's 5-second reqwest timeout.
const testProviderTimeout = 5 * time.Second

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	snapshot := s.State.Load()
	if snapshot.Config == nil {
		s.internalError(w, "no config loaded")
		return
	}
	cfg := *snapshot.Config
	redactAPIKeys(&cfg)
	s.writeJSON(w, http.StatusOK, cfg)
}

// redactAPIKeys blanks inline API keys before a config is returned over
// the API; api_key_env names are left intact since they name a variable,
// not a secret.
func redactAPIKeys(cfg *config.Config) {
	redactSlot := func(slot *config.ModelSlot) {
		if slot == nil {
			return
		}
		for i := range slot.Providers {
			if slot.Providers[i].APIKey != "" {
				slot.Providers[i].APIKey = "********"
			}
		}
	}
	redactSlot(&cfg.Models.Chat)
	redactSlot(cfg.Models.Embedding)
}

// handlePutConfigSection replaces one top-level config section, validates
// and rebuilds the runtime against the merged config, and persists it to
// disk via the reload pipeline. A server-section change is applied but
// flagged with a restart_required warning since the HTTP listener can't
// rebind itself mid-process.
func (s *Server) handlePutConfigSection(w http.ResponseWriter, r *http.Request) {
	section := r.PathValue("section")

	snapshot := s.State.Load()
	if snapshot.Config == nil {
		s.internalError(w, "no config loaded")
		return
	}
	// Decode into a deep copy so a rejected update never touches the live
	// snapshot's slices or pointers.
	var cfg config.Config
	raw, err := json.Marshal(snapshot.Config)
	if err == nil {
		err = json.Unmarshal(raw, &cfg)
	}
	if err != nil {
		s.internalError(w, "failed to copy config: "+err.Error())
		return
	}

	var decodeErr error
	switch section {
	case "models":
		decodeErr = json.NewDecoder(r.Body).Decode(&cfg.Models)
	case "skills":
		decodeErr = json.NewDecoder(r.Body).Decode(&cfg.Skills)
	case "chat":
		decodeErr = json.NewDecoder(r.Body).Decode(&cfg.Chat)
	case "server":
		decodeErr = json.NewDecoder(r.Body).Decode(&cfg.Server)
	case "memory":
		decodeErr = json.NewDecoder(r.Body).Decode(&cfg.Memory)
	case "interfaces":
		decodeErr = json.NewDecoder(r.Body).Decode(&cfg.Interfaces)
	default:
		s.notFound(w, "unknown config section")
		return
	}
	if decodeErr != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}

	if err := reload.Apply(r.Context(), cfg, s.State.ConfigPath(), s.VectorDBPath, s.State); err != nil {
		if verr, ok := err.(*reload.ValidationError); ok {
			s.validationError(w, verr.Errors)
			return
		}
		s.internalError(w, err.Error())
		return
	}

	notes := []string(nil)
	if section == "server" {
		notes = append(notes, chatmodel.WarnRestartRequired)
		s.State.SetWarnings(append(s.State.Warnings(), chatmodel.Warning{
			Code:     chatmodel.WarnRestartRequired,
			Message:  "server host/port changes take effect after a restart",
			Severity: chatmodel.SeverityWarning,
		}))
	}

	s.writeJSON(w, http.StatusOK, struct {
		Config *config.Config `json:"config"`
		Notes  []string       `json:"notes,omitempty"`
	}{Config: s.State.Load().Config, Notes: notes})
}

type testProviderRequest struct {
	config.ProviderEntry
}

type testProviderResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// handleTestProvider builds a throwaway one-provider chain from the
// submitted entry, sends it a single "ping" user message, and reports the
// first token or error received within testProviderTimeout, without
// touching the live provider chain.
func (s *Server) handleTestProvider(w http.ResponseWriter, r *http.Request) {
	var req testProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Model == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "model must be set")
		return
	}

	probeCfg := config.Config{Models: config.ModelsConfig{Chat: config.ModelSlot{Providers: []config.ProviderEntry{req.ProviderEntry}}}}

	ctx, cancel := context.WithTimeout(r.Context(), testProviderTimeout)
	defer cancel()

	chain, err := reload.BuildProviderChain(ctx, probeCfg)
	if err != nil {
		s.writeJSON(w, http.StatusOK, testProviderResponse{Status: "unhealthy", Message: err.Error()})
		return
	}

	stream, err := chain.Complete(ctx, []chatmodel.Message{{
		Role:      chatmodel.RoleUser,
		Content:   chatmodel.TextContent("ping"),
		Timestamp: now(),
	}}, nil)
	if err != nil {
		s.writeJSON(w, http.StatusOK, testProviderResponse{Status: "unhealthy", Message: err.Error()})
		return
	}

	for tok := range stream {
		switch tok.Kind {
		case llmprovider.TokenError:
			msg := "provider returned an error"
			if tok.Err != nil {
				msg = tok.Err.Message
			}
			s.writeJSON(w, http.StatusOK, testProviderResponse{Status: "unhealthy", Message: msg})
			return
		case llmprovider.TokenText, llmprovider.TokenToolCall:
			s.writeJSON(w, http.StatusOK, testProviderResponse{Status: "healthy", Message: "provider responded"})
			cancel()
			return
		}
	}
	s.writeJSON(w, http.StatusOK, testProviderResponse{Status: "healthy", Message: "provider responded"})
}

type discoveredModel struct {
	ID            string `json:"id"`
	Loaded        bool   `json:"loaded,omitempty"`
	ContextLength int    `json:"context_length,omitempty"`
}

type discoverModelsRequest struct {
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"api_key,omitempty"`
}

// handleDiscoverModels lists models available at an OpenAI-compatible
// endpoint, preferring LM Studio's richer native listing when present.
func (s *Server) handleDiscoverModels(w http.ResponseWriter, r *http.Request) {
	var req discoverModelsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if req.Endpoint == "" {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "endpoint must be set")
		return
	}

	base, err := baseURL(req.Endpoint)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_request", "malformed endpoint: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), testProviderTimeout)
	defer cancel()

	if models, err := discoverNative(ctx, base, req.APIKey); err == nil {
		s.writeJSON(w, http.StatusOK, struct {
			Models []discoveredModel `json:"models"`
		}{Models: models})
		return
	}

	models, err := discoverOpenAICompat(ctx, base, req.APIKey)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, "discovery_failed", err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, struct {
		Models []discoveredModel `json:"models"`
	}{Models: models})
}

// baseURL strips path/query/fragment from an endpoint, leaving scheme://host[:port].
func baseURL(endpoint string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", err
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "/"), nil
}

type nativeModelsResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Loaded        bool   `json:"loaded"`
		ContextLength int    `json:"context_length"`
	} `json:"data"`
}

func discoverNative(ctx context.Context, base, apiKey string) ([]discoveredModel, error) {
	resp, err := httpGetJSON(ctx, base+"/api/v0/models", apiKey)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errNonOK(resp.StatusCode)
	}
	var parsed nativeModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	models := make([]discoveredModel, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		models = append(models, discoveredModel{ID: m.ID, Loaded: m.Loaded, ContextLength: m.ContextLength})
	}
	return models, nil
}

type openAIModelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func discoverOpenAICompat(ctx context.Context, base, apiKey string) ([]discoveredModel, error) {
	resp, err := httpGetJSON(ctx, base+"/models", apiKey)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errNonOK(resp.StatusCode)
	}
	var parsed openAIModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	models := make([]discoveredModel, 0, len(parsed.Data))
	for _, m := range parsed.Data {
		models = append(models, discoveredModel{ID: m.ID})
	}
	return models, nil
}

func httpGetJSON(ctx context.Context, url, apiKey string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	client := &http.Client{Timeout: testProviderTimeout}
	return client.Do(req)
}

func errNonOK(status int) error {
	return &httpStatusError{status: status}
}

type httpStatusError struct{ status int }

func (e *httpStatusError) Error() string {
	return http.StatusText(e.status)
}

func now() time.Time { return time.Now().UTC() }
