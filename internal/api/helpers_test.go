package api

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pdf-gateway/backend/internal/backend"
	"github.com/pdf-gateway/backend/internal/gateway"
	"github.com/pdf-gateway/backend/internal/testutil"
	"github.com/pdf-gateway/backend/internal/upload"
	"github.com/stretchr/testify/require"
)

type testFile struct {
	field       string
	name        string
	contentType string
	data        []byte
}

func pdf(name string) testFile {
	return testFile{field: "files", name: name, contentType: "application/pdf", data: []byte("%PDF-1.4 " + name)}
}

// multipartBody builds a multipart/form-data body with explicit part headers.
func multipartBody(t *testing.T, files ...testFile) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, f.field, f.name))
		if f.contentType != "" {
			header.Set("Content-Type", f.contentType)
		}
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

type serverOptions struct {
	backendURL    string
	maxBody       int64
	forwardStatus bool
	bodyLimit     string
	indexLimit    string
}

// newTestServer wires the real collector, service and client against backendURL.
func newTestServer(t *testing.T, opts serverOptions) *echo.Echo {
	t.Helper()
	if opts.maxBody == 0 {
		opts.maxBody = 1 << 20
	}

	client, err := backend.NewClient(backend.Options{BaseURL: opts.backendURL, MaxBodySize: opts.maxBody})
	require.NoError(t, err)

	e := echo.New()
	SetupMiddleware(e, MiddlewareOptions{})
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Gateway:            gateway.NewService(client, gateway.Options{FieldName: "files", MaxFiles: 10}),
		Collector:          upload.NewCollector("files", 10, opts.maxBody),
		BackendURL:         client.BaseURL(),
		Version:            "test",
		ForwardIndexStatus: opts.forwardStatus,
		WebSocketReadLimit: 4 << 20,
		EnableWebSocket:    true,
		ConvertBodyLimit:   opts.bodyLimit,
		IndexBodyLimit:     opts.indexLimit,
	}))
	return e
}

func newFakeBackend(t *testing.T) *testutil.FakeBackend {
	t.Helper()
	fb := testutil.NewFakeBackend()
	t.Cleanup(fb.Close)
	return fb
}
