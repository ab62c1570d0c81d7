package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"testing"

	"github.com/pdf-gateway/backend/internal/models"
	"github.com/pdf-gateway/backend/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend records calls and replays canned results.
type stubBackend struct {
	records []models.ChunkRecord
	reply   json.RawMessage
	err     error

	convertCalls int
	indexCalls   int
	lastBody     []byte
	lastType     string
	lastChunks   []json.RawMessage
	lastFileName string
}

func (b *stubBackend) Convert(ctx context.Context, contentType string, body []byte) ([]models.ChunkRecord, error) {
	b.convertCalls++
	b.lastType = contentType
	b.lastBody = body
	return b.records, b.err
}

func (b *stubBackend) AddToIndex(ctx context.Context, chunks []json.RawMessage, fileName string) (json.RawMessage, error) {
	b.indexCalls++
	b.lastChunks = chunks
	b.lastFileName = fileName
	return b.reply, b.err
}

func records(t *testing.T, raw string) []models.ChunkRecord {
	t.Helper()
	var out []models.ChunkRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &out))
	return out
}

func TestService_Convert(t *testing.T) {
	backend := &stubBackend{records: records(t, `[
		{"file_name":"a.pdf","text":"x"},
		{"file_name":"b.pdf","text":"y"},
		{"file_name":"a.pdf","text":"z"}
	]`)}
	svc := NewService(backend, Options{FieldName: "files", MaxFiles: 10})

	payloads := []models.FilePayload{
		{Name: "a.pdf", ContentType: "application/pdf", Data: []byte("A")},
		{Name: "b.pdf", ContentType: "application/pdf", Data: []byte("B")},
	}
	env, err := svc.Convert(context.Background(), payloads)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.convertCalls)
	assert.True(t, env.Success)
	assert.Equal(t, 3, env.TotalChunks)
	assert.Equal(t, 2, env.FilesProcessed)
	assert.Equal(t, []string{"a.pdf", "b.pdf"}, env.Results.Keys())

	// The backend saw one part per file, in order.
	_, params, err := mime.ParseMediaType(backend.lastType)
	require.NoError(t, err)
	reader := multipart.NewReader(bytes.NewReader(backend.lastBody), params["boundary"])
	for _, want := range payloads {
		part, err := reader.NextPart()
		require.NoError(t, err)
		assert.Equal(t, "files", part.FormName())
		assert.Equal(t, want.Name, part.FileName())
		data, _ := io.ReadAll(part)
		assert.Equal(t, want.Data, data)
	}
}

func TestService_ConvertRejectsBeforeBackend(t *testing.T) {
	backend := &stubBackend{}
	svc := NewService(backend, Options{MaxFiles: 10})

	_, err := svc.Convert(context.Background(), nil)
	assert.ErrorIs(t, err, upload.ErrNoFiles)

	var many []models.FilePayload
	for i := 0; i < 11; i++ {
		many = append(many, models.FilePayload{Name: fmt.Sprintf("%d.pdf", i)})
	}
	_, err = svc.Convert(context.Background(), many)
	var tooMany *upload.TooManyFilesError
	assert.True(t, errors.As(err, &tooMany))

	assert.Zero(t, backend.convertCalls, "backend must not be called")
}

func TestService_ConvertPropagatesBackendError(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(&stubBackend{err: boom}, Options{MaxFiles: 10})

	_, err := svc.Convert(context.Background(), []models.FilePayload{{Name: "a.pdf", Data: []byte("a")}})
	assert.ErrorIs(t, err, boom)
}

func TestService_AddToIndex(t *testing.T) {
	backend := &stubBackend{reply: json.RawMessage(`{"ok":true}`)}
	svc := NewService(backend, Options{})

	req := models.IndexRequest{Chunks: []json.RawMessage{json.RawMessage(`"one"`)}, FileName: "a.pdf"}
	resp, err := svc.AddToIndex(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp))
	assert.Equal(t, "a.pdf", backend.lastFileName)
	assert.Len(t, backend.lastChunks, 1)
}

func TestService_AddToIndexValidation(t *testing.T) {
	backend := &stubBackend{}
	svc := NewService(backend, Options{})

	_, err := svc.AddToIndex(context.Background(), models.IndexRequest{Chunks: []json.RawMessage{}, FileName: "a.pdf"})
	assert.ErrorIs(t, err, models.ErrIndexFieldsRequired)

	_, err = svc.AddToIndex(context.Background(), models.IndexRequest{Chunks: []json.RawMessage{json.RawMessage(`1`)}})
	assert.ErrorIs(t, err, models.ErrIndexFieldsRequired)

	assert.Zero(t, backend.indexCalls)
}
