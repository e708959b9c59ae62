package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/arbiterhq/arbiter/internal/model"
	"github.com/arbiterhq/arbiter/internal/util"
)

const defaultSerperURL = "https://google.serper.dev"

// SerperBackend implements SearchBackend over the Serper web-search API.
type SerperBackend struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
}

// NewSerperBackend creates the search transport.
func NewSerperBackend(cfg model.ServiceConfig) (*SerperBackend, error) {
	if cfg.SearchAPIKey == "" {
		return nil, fmt.Errorf("search API key is required")
	}

	baseURL := cfg.SearchBaseURL
	if baseURL == "" {
		baseURL = defaultSerperURL
	}

	return &SerperBackend{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy),
			},
		},
		apiKey:  cfg.SearchAPIKey,
		baseURL: baseURL,
	}, nil
}

type serperRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num,omitempty"`
}

type serperResponse struct {
	Organic []SearchResult `json:"organic"`
	AnswerBox *struct {
		Answer  string `json:"answer,omitempty"`
		Snippet string `json:"snippet,omitempty"`
		Link    string `json:"link,omitempty"`
	} `json:"answerBox,omitempty"`
}

// Search issues one query and returns organic results.
func (b *SerperBackend) Search(ctx context.Context, req Request) (*Response, error) {
	num := req.NumResults
	if num <= 0 {
		num = 10
	}

	body, err := json.Marshal(serperRequest{Query: req.Query, Num: num})
	if err != nil {
		return nil, Permanent(fmt.Errorf("marshal search request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, Permanent(fmt.Errorf("create search request: %w", err))
	}
	httpReq.Header.Set("X-API-KEY", b.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read search response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("search status %d: %s", resp.StatusCode, truncate(string(payload), 200))
		if RetryableStatus(resp.StatusCode) {
			return nil, err
		}
		return nil, Permanent(err)
	}

	var parsed serperResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return nil, fmt.Errorf("parse search response: %w", err)
	}

	results := parsed.Organic
	// An answer box is the most direct evidence; surface it first.
	if parsed.AnswerBox != nil {
		snippet := parsed.AnswerBox.Snippet
		if snippet == "" {
			snippet = parsed.AnswerBox.Answer
		}
		if snippet != "" {
			results = append([]SearchResult{{
				Title:   "Answer box",
				URL:     parsed.AnswerBox.Link,
				Snippet: snippet,
			}}, results...)
		}
	}

	return &Response{Results: results}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
