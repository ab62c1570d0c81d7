// Package gateway runs the conversion and indexing pipelines against the backend.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	logs "github.com/danmuck/smplog"
	"github.com/dustin/go-humanize"
	"github.com/pdf-gateway/backend/internal/models"
	"github.com/pdf-gateway/backend/internal/results"
	"github.com/pdf-gateway/backend/internal/upload"
)

// Backend is the subset of the backend client the service needs.
type Backend interface {
	Convert(ctx context.Context, contentType string, body []byte) ([]models.ChunkRecord, error)
	AddToIndex(ctx context.Context, chunks []json.RawMessage, fileName string) (json.RawMessage, error)
}

// Options configures a Service.
type Options struct {
	FieldName string
	MaxFiles  int
}

// Service composes, forwards and reshapes requests. It holds no per-request state.
type Service struct {
	backend   Backend
	fieldName string
	maxFiles  int
}

// NewService creates a service.
func NewService(backend Backend, opts Options) *Service {
	field := opts.FieldName
	if field == "" {
		field = "files"
	}
	return &Service{
		backend:   backend,
		fieldName: field,
		maxFiles:  opts.MaxFiles,
	}
}

// Convert sends payloads to the backend in one multipart request and groups
// the returned chunks by file name.
func (s *Service) Convert(ctx context.Context, payloads []models.FilePayload) (*models.ConversionEnvelope, error) {
	if err := upload.Validate(payloads, s.maxFiles); err != nil {
		return nil, err
	}

	body, err := upload.Compose(s.fieldName, payloads)
	if err != nil {
		return nil, fmt.Errorf("composing backend request: %w", err)
	}

	start := time.Now()
	logs.Infof("[Convert] forwarding %d file(s), %s", len(payloads), humanize.IBytes(uint64(body.Len())))

	records, err := s.backend.Convert(ctx, body.ContentType, body.Data)
	if err != nil {
		logs.Warnf("[Convert] backend call failed after %s: %v", time.Since(start).Round(time.Millisecond), err)
		return nil, err
	}

	grouped := results.Group(records)
	logs.Infof("[Convert] %d chunk(s) across %d file name(s) in %s",
		len(records), grouped.Len(), time.Since(start).Round(time.Millisecond))

	return results.NewEnvelope(len(payloads), records, grouped), nil
}

// AddToIndex validates req and forwards it to the backend's indexing endpoint.
func (s *Service) AddToIndex(ctx context.Context, req models.IndexRequest) (json.RawMessage, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	logs.Infof("[Index] adding %d chunk(s) for %s", len(req.Chunks), req.FileName)

	resp, err := s.backend.AddToIndex(ctx, req.Chunks, req.FileName)
	if err != nil {
		logs.Warnf("[Index] backend call failed for %s: %v", req.FileName, err)
		return nil, err
	}
	return resp, nil
}
