package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type ApiEmbedder struct {
	url    string
	client *http.Client
}

func NewApi(url string) *ApiEmbedder {
	return &ApiEmbedder{url: url, client: &http.Client{}}
}

func (e *ApiEmbedder) ModelName() string { return "api" }

func (e *ApiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings, err := e.embedRequest(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embed api returned %d vectors for %d inputs", len(embeddings), len(texts))
	}
	return embeddings, nil
}

func (e *ApiEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

type embedRequest struct {
	Sentences []string `json:"sentences"`
}

func (e *ApiEmbedder) embedRequest(ctx context.Context, texts []string) ([][]float32, error) {
	request := &embedRequest{
		Sentences: texts,
	}
	body, err := json.Marshal(request)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	response, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = response.Body.Close() }()
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(response.Body, 1<<16))
		return nil, fmt.Errorf("embed api: HTTP %d: %s", response.StatusCode, strings.TrimSpace(string(msg)))
	}
	var embeddings [][]float32
	if err := json.NewDecoder(response.Body).Decode(&embeddings); err != nil {
		return nil, fmt.Errorf("decode embed api response: %w", err)
	}
	return embeddings, nil
}
