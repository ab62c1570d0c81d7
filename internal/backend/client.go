// Package backend talks to the document-processing service that converts
// uploaded files into chunks and maintains the vector collection.
package backend

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

	logs "github.com/danmuck/smplog"
	"github.com/dustin/go-humanize"
	"github.com/pdf-gateway/backend/internal/models"
)

const (
	DefaultConvertPath = "/convert-pdfs-chunks"
	DefaultIndexPath   = "/add-to-vector-collection"
)

// Options configures a Client.
type Options struct {
	BaseURL     string
	ConvertPath string
	IndexPath   string
	// MaxBodySize caps the conversion request and reply in bytes; <= 0 disables
	// the ceiling. Index calls are not capped.
	MaxBodySize int64
	// Timeout bounds a whole backend call; zero means no timeout.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client issues requests to the backend.
type Client struct {
	convertURL  string
	indexURL    string
	baseURL     string
	maxBodySize int64
	http        *http.Client
}

// NewClient validates opts and creates a client.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing backend url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("backend url %q must use http or https", opts.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("backend url %q has no host", opts.BaseURL)
	}

	convertPath := opts.ConvertPath
	if convertPath == "" {
		convertPath = DefaultConvertPath
	}
	indexPath := opts.IndexPath
	if indexPath == "" {
		indexPath = DefaultIndexPath
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		convertURL:  base.String() + ensureSlash(convertPath),
		indexURL:    base.String() + ensureSlash(indexPath),
		baseURL:     base.String(),
		maxBodySize: opts.MaxBodySize,
		http:        httpClient,
	}, nil
}

// BaseURL returns the normalized backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Convert posts a composed multipart body and returns the backend's chunks in order.
func (c *Client) Convert(ctx context.Context, contentType string, body []byte) ([]models.ChunkRecord, error) {
	if c.maxBodySize > 0 && int64(len(body)) > c.maxBodySize {
		return nil, &models.PayloadTooLargeError{
			Stage: models.StageOutbound,
			Limit: c.maxBodySize,
			Size:  int64(len(body)),
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.convertURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building convert request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	logs.Debugf("[Backend] POST %s (%s)", c.convertURL, humanize.IBytes(uint64(len(body))))

	status, data, err := c.do(req, "convert", c.maxBodySize)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, newStatusError(status, data)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, &InvalidResponseError{Reason: "expected a JSON array of chunks", Body: data}
	}
	var records []models.ChunkRecord
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, &InvalidResponseError{Reason: err.Error(), Body: data}
	}
	if records == nil {
		records = []models.ChunkRecord{}
	}
	return records, nil
}

// AddToIndex forwards chunks for fileName to the indexing endpoint and returns
// the backend's reply untouched. Non-JSON replies are encoded as a JSON string.
func (c *Client) AddToIndex(ctx context.Context, chunks []json.RawMessage, fileName string) (json.RawMessage, error) {
	payload, err := json.Marshal(models.BackendIndexRequest{Chunks: chunks, FileName: fileName})
	if err != nil {
		return nil, fmt.Errorf("encoding index request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.indexURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building index request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	logs.Debugf("[Backend] POST %s (%d chunks for %s)", c.indexURL, len(chunks), fileName)

	status, data, err := c.do(req, "add to index", 0)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, newStatusError(status, data)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && json.Valid(trimmed) {
		return json.RawMessage(trimmed), nil
	}
	encoded, err := json.Marshal(string(data))
	if err != nil {
		return nil, fmt.Errorf("encoding index response: %w", err)
	}
	return encoded, nil
}

// do sends req and reads the whole response body, failing when it exceeds
// limit. limit <= 0 reads without a ceiling.
func (c *Client) do(req *http.Request, op string, limit int64) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, &UnreachableError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if limit > 0 && resp.ContentLength > limit {
		return 0, nil, &models.PayloadTooLargeError{
			Stage: models.StageResponse,
			Limit: limit,
			Size:  resp.ContentLength,
		}
	}

	var reader io.Reader = resp.Body
	if limit > 0 {
		reader = io.LimitReader(resp.Body, limit+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return 0, nil, &UnreachableError{Op: op, Err: fmt.Errorf("reading response: %w", err)}
	}
	if limit > 0 && int64(len(data)) > limit {
		return 0, nil, &models.PayloadTooLargeError{
			Stage: models.StageResponse,
			Limit: limit,
			Size:  int64(len(data)),
		}
	}
	return resp.StatusCode, data, nil
}

func ensureSlash(path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	return "/" + path
}
