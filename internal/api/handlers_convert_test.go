package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pdf-gateway/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

const exampleChunks = `[
	{"text":"a","file_name":"x.pdf"},
	{"text":"b","file_name":"y.pdf"},
	{"text":"c","file_name":"x.pdf"}
]`

func postConvert(t *testing.T, e *echo.Echo, files ...testFile) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, files...)
	req := httptest.NewRequest(http.MethodPost, "/api/convert-pdfs-chunks", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestConvertHandler_GroupsChunksByFile(t *testing.T) {
	fb := newFakeBackend(t)
	fb.SetConvertResponse(http.StatusOK, exampleChunks)
	e := newTestServer(t, serverOptions{backendURL: fb.URL()})

	rec := postConvert(t, e, pdf("x.pdf"), pdf("y.pdf"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{
		"success": true,
		"total_chunks": 3,
		"files_processed": 2,
		"results": {
			"x.pdf": [{"text":"a","file_name":"x.pdf"},{"text":"c","file_name":"x.pdf"}],
			"y.pdf": [{"text":"b","file_name":"y.pdf"}]
		},
		"raw_chunks": [
			{"text":"a","file_name":"x.pdf"},
			{"text":"b","file_name":"y.pdf"},
			{"text":"c","file_name":"x.pdf"}
		]
	}`, rec.Body.String())

	out := rec.Body.String()
	assert.Less(t, strings.Index(out, `"x.pdf":[`), strings.Index(out, `"y.pdf":[`), "groups keep first-seen order")
	assert.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestConvertHandler_ForwardsFilesInOneCall(t *testing.T) {
	fb := newFakeBackend(t)
	e := newTestServer(t, serverOptions{backendURL: fb.URL()})

	files := []testFile{
		pdf("b.pdf"),
		{field: "files", name: "notes.txt", contentType: "text/plain", data: []byte("plain notes")},
		{field: "files", name: "raw.bin", data: []byte{0x00, 0xff, 0x10}},
	}
	rec := postConvert(t, e, files...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	calls := fb.ConvertCalls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 3)
	assert.Equal(t, "multipart/form-data", fb.LastMediaType())

	wantTypes := []string{"application/pdf", "text/plain", "application/octet-stream"}
	for i, part := range calls[0] {
		assert.Equal(t, "files", part.FieldName)
		assert.Equal(t, files[i].name, part.FileName)
		assert.Equal(t, wantTypes[i], part.ContentType)
		assert.Equal(t, files[i].data, part.Data)
	}

	assert.JSONEq(t, `{"success":true,"total_chunks":0,"files_processed":3,"results":{},"raw_chunks":[]}`, rec.Body.String())
}

func TestConvertHandler_AcceptsUpToTenFiles(t *testing.T) {
	for n := 1; n <= 10; n++ {
		t.Run(fmt.Sprintf("%d files", n), func(t *testing.T) {
			fb := newFakeBackend(t)
			e := newTestServer(t, serverOptions{backendURL: fb.URL()})

			var files []testFile
			for i := 0; i < n; i++ {
				files = append(files, pdf(fmt.Sprintf("doc-%d.pdf", i)))
			}
			rec := postConvert(t, e, files...)

			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			require.Len(t, fb.ConvertCalls(), 1)
			assert.Len(t, fb.ConvertCalls()[0], n)
		})
	}
}

func TestConvertHandler_RequestErrors(t *testing.T) {
	var eleven []testFile
	for i := 0; i < 11; i++ {
		eleven = append(eleven, pdf(fmt.Sprintf("doc-%d.pdf", i)))
	}

	tests := []struct {
		name        string
		build       func(t *testing.T) (*bytes.Buffer, string)
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name: "no files",
			build: func(t *testing.T) (*bytes.Buffer, string) {
				return multipartBody(t)
			},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "VALIDATION_ERROR",
			wantMessage: "No files uploaded",
		},
		{
			name: "only other fields",
			build: func(t *testing.T) (*bytes.Buffer, string) {
				return multipartBody(t, testFile{field: "attachment", name: "a.pdf", data: []byte("x")})
			},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "VALIDATION_ERROR",
			wantMessage: "No files uploaded",
		},
		{
			name: "not multipart",
			build: func(t *testing.T) (*bytes.Buffer, string) {
				return bytes.NewBufferString(`{"files":[]}`), echo.MIMEApplicationJSON
			},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "VALIDATION_ERROR",
			wantMessage: "No files uploaded",
		},
		{
			name: "eleven files",
			build: func(t *testing.T) (*bytes.Buffer, string) {
				return multipartBody(t, eleven...)
			},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "TOO_MANY_FILES",
			wantMessage: "Too many files: at most 10 allowed",
		},
		{
			name: "encoded CRLF in file name",
			build: func(t *testing.T) (*bytes.Buffer, string) {
				body := new(bytes.Buffer)
				writer := multipart.NewWriter(body)
				header := make(textproto.MIMEHeader)
				header.Set("Content-Disposition", `form-data; name="files"; filename*=UTF-8''a%0D%0AContent-Type%3A%20text%2Fevil%0D%0AX-Injected%3A%201.pdf`)
				header.Set("Content-Type", "application/pdf")
				part, err := writer.CreatePart(header)
				require.NoError(t, err)
				_, err = part.Write([]byte("%PDF"))
				require.NoError(t, err)
				require.NoError(t, writer.Close())
				return body, writer.FormDataContentType()
			},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "BAD_REQUEST",
			wantMessage: "Invalid file name",
		},
		{
			name: "broken framing",
			build: func(t *testing.T) (*bytes.Buffer, string) {
				return bytes.NewBufferString("--abc\r\nContent-Disposition: form-data; name=\"files\"; filename=\"a.pdf\"\r\n\r\ntruncated"),
					"multipart/form-data; boundary=abc"
			},
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newFakeBackend(t)
			e := newTestServer(t, serverOptions{backendURL: fb.URL()})

			body, contentType := tt.build(t)
			req := httptest.NewRequest(http.MethodPost, "/api/convert-pdfs-chunks", body)
			req.Header.Set(echo.HeaderContentType, contentType)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp["code"])
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, resp["error"])
			}
			assert.Empty(t, fb.ConvertCalls(), "backend must not be called")
		})
	}
}

func TestConvertHandler_SizeCeiling(t *testing.T) {
	fb := newFakeBackend(t)
	e := newTestServer(t, serverOptions{backendURL: fb.URL(), maxBody: 1024})

	big := testFile{field: "files", name: "big.pdf", contentType: "application/pdf", data: bytes.Repeat([]byte("x"), 2048)}
	rec := postConvert(t, e, big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", decodeError(t, rec)["code"])
	assert.Empty(t, fb.ConvertCalls())
}

func TestConvertHandler_BodyLimitMiddleware(t *testing.T) {
	fb := newFakeBackend(t)
	e := newTestServer(t, serverOptions{backendURL: fb.URL(), bodyLimit: "1K"})

	big := testFile{field: "files", name: "big.pdf", contentType: "application/pdf", data: bytes.Repeat([]byte("x"), 4096)}
	rec := postConvert(t, e, big)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", decodeError(t, rec)["code"])
	assert.Empty(t, fb.ConvertCalls())
}

func TestConvertHandler_BackendErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantStatus  int
		wantCode    string
		wantMessage string
		wantDetails interface{}
	}{
		{
			name:        "detail passthrough",
			status:      http.StatusRequestEntityTooLarge,
			body:        `{"detail":"file too large"}`,
			wantStatus:  http.StatusRequestEntityTooLarge,
			wantCode:    "BACKEND_ERROR",
			wantMessage: "file too large",
			wantDetails: map[string]interface{}{"detail": "file too large"},
		},
		{
			name:        "no detail",
			status:      http.StatusInternalServerError,
			body:        `{"oops":true}`,
			wantStatus:  http.StatusInternalServerError,
			wantCode:    "BACKEND_ERROR",
			wantMessage: "Failed to process PDFs",
			wantDetails: map[string]interface{}{"oops": true},
		},
		{
			name:        "validation status kept",
			status:      http.StatusUnprocessableEntity,
			body:        `{"detail":"unsupported file"}`,
			wantStatus:  http.StatusUnprocessableEntity,
			wantCode:    "BACKEND_ERROR",
			wantMessage: "unsupported file",
		},
		{
			name:        "object instead of array",
			status:      http.StatusOK,
			body:        `{"chunks":[]}`,
			wantStatus:  http.StatusBadGateway,
			wantCode:    "INVALID_BACKEND_RESPONSE",
			wantMessage: "Failed to process PDFs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := newFakeBackend(t)
			fb.SetConvertResponse(tt.status, tt.body)
			e := newTestServer(t, serverOptions{backendURL: fb.URL()})

			rec := postConvert(t, e, pdf("a.pdf"))

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp["code"])
			assert.Equal(t, tt.wantMessage, resp["error"])
			if tt.wantDetails != nil {
				assert.Equal(t, tt.wantDetails, resp["details"])
			}
		})
	}
}

func TestConvertHandler_BackendUnreachable(t *testing.T) {
	e := newTestServer(t, serverOptions{backendURL: testutil.UnreachableURL()})

	rec := postConvert(t, e, pdf("a.pdf"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "BACKEND_UNREACHABLE", resp["code"])
	assert.Equal(t, "Failed to process PDFs", resp["error"])
	details, ok := resp["details"].(string)
	require.True(t, ok)
	assert.NotEmpty(t, details)
}

func TestConvertHandler_Msgpack(t *testing.T) {
	fb := newFakeBackend(t)
	fb.SetConvertResponse(http.StatusOK, exampleChunks)
	e := newTestServer(t, serverOptions{backendURL: fb.URL()})

	body, contentType := multipartBody(t, pdf("x.pdf"), pdf("y.pdf"))
	req := httptest.NewRequest(http.MethodPost, "/api/convert-pdfs-chunks", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	req.Header.Set(echo.HeaderAccept, "application/msgpack")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, echo.MIMEApplicationMsgpack, rec.Header().Get(echo.HeaderContentType))

	var decoded struct {
		Success        bool                                `msgpack:"success"`
		TotalChunks    int                                 `msgpack:"total_chunks"`
		FilesProcessed int                                 `msgpack:"files_processed"`
		Results        map[string][]map[string]interface{} `msgpack:"results"`
		RawChunks      []map[string]interface{}            `msgpack:"raw_chunks"`
	}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &decoded))

	assert.True(t, decoded.Success)
	assert.Equal(t, 3, decoded.TotalChunks)
	assert.Equal(t, 2, decoded.FilesProcessed)
	require.Len(t, decoded.Results["x.pdf"], 2)
	assert.Equal(t, "c", decoded.Results["x.pdf"][1]["text"])
	assert.Len(t, decoded.RawChunks, 3)
}

func TestWantsMsgpack(t *testing.T) {
	tests := []struct {
		accept string
		want   bool
	}{
		{"", false},
		{"application/json", false},
		{"application/msgpack", true},
		{"application/json, application/msgpack;q=0.9", true},
		{"Application/MsgPack", true},
		{"application/msgpack-ish", false},
	}

	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			req.Header.Set(echo.HeaderAccept, tt.accept)
			assert.Equal(t, tt.want, wantsMsgpack(req))
		})
	}
}
