package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"
)

// Config for the OpenAI-compatible embeddings client.
type Config struct {
	APIKey    string        // if empty, falls back to env EMBEDDING_API_KEY
	BaseURL   string        // default https://api.openai.com/v1
	Model     string        // e.g., "text-embedding-3-small"
	Dimension int           // expected vector width; checked on every response
	Timeout   time.Duration // http client timeout
}

// Client implements Embedder against any /embeddings endpoint that speaks
// the OpenAI wire shape.
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

var _ Embedder = (*Client)(nil)

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("EMBEDDING_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 1536
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

func (c *Client) Model() string { return c.cfg.Model }

func (c *Client) Dimension() int { return c.cfg.Dimension }

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch sends one request for the whole batch and joins the returned
// vectors back to inputs by index, not by arrival order.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	start := time.Now()

	body := map[string]any{
		"model": c.cfg.Model,
		"input": texts,
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/embeddings"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("embedding.batch.http_error",
			"error", err, "texts", len(texts),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	var resp struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		c.log.Error("embedding.batch.decode_error",
			"error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(resp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range for batch of %d", d.Index, len(texts))
		}
		if len(d.Embedding) != c.cfg.Dimension {
			return nil, fmt.Errorf("embedding %d dimension mismatch: got %d, want %d (model: %s)",
				d.Index, len(d.Embedding), c.cfg.Dimension, c.cfg.Model)
		}
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
	}

	c.log.Debug("embedding.batch.ok",
		"texts", len(texts), "model", c.cfg.Model,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings http error: %w", err)
	}
	defer func(rc io.ReadCloser) {
		if cerr := rc.Close(); cerr != nil {
			c.log.Warn("embeddings response body close error", "error", cerr)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(resp.Body)
		return nil, fmt.Errorf("embeddings status %d: %s", resp.StatusCode, buf.String())
	}

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	return buf.Bytes(), nil
}
