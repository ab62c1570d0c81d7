// fake_backend.go - In-process stand-in for the document-processing backend
package testutil

import (
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// ReceivedPart is one multipart part the fake backend received.
type ReceivedPart struct {
	FieldName   string
	FileName    string
	ContentType string
	Data        []byte
}

// ReceivedIndex is one indexing request the fake backend received.
type ReceivedIndex struct {
	Chunks   []json.RawMessage `json:"chunks"`
	FileName string            `json:"file_name"`
}

// Response is a canned reply.
type Response struct {
	Status      int
	Body        string
	ContentType string
}

// FakeBackend serves the backend's convert and index endpoints and records
// what it was sent.
type FakeBackend struct {
	server *httptest.Server

	mu            sync.RWMutex
	convertReply  Response
	indexReply    Response
	convertCalls  [][]ReceivedPart
	indexCalls    []ReceivedIndex
	lastMediaType string
}

// NewFakeBackend starts a fake backend that answers every call with 200 and an
// empty JSON array or object. Close it with t.Cleanup.
func NewFakeBackend() *FakeBackend {
	fb := &FakeBackend{
		convertReply: Response{Status: http.StatusOK, Body: `[]`},
		indexReply:   Response{Status: http.StatusOK, Body: `{"status":"ok"}`},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/convert-pdfs-chunks", fb.handleConvert)
	mux.HandleFunc("/add-to-vector-collection", fb.handleIndex)
	fb.server = httptest.NewServer(mux)
	return fb
}

// URL returns the base address of the fake backend.
func (fb *FakeBackend) URL() string {
	return fb.server.URL
}

// Close shuts the server down.
func (fb *FakeBackend) Close() {
	fb.server.Close()
}

// SetConvertResponse sets the reply of the convert endpoint.
func (fb *FakeBackend) SetConvertResponse(status int, body string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.convertReply = Response{Status: status, Body: body}
}

// SetIndexResponse sets the reply of the index endpoint.
func (fb *FakeBackend) SetIndexResponse(status int, body string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.indexReply = Response{Status: status, Body: body}
}

// SetIndexResponseType sets the reply of the index endpoint with an explicit content type.
func (fb *FakeBackend) SetIndexResponseType(status int, body, contentType string) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.indexReply = Response{Status: status, Body: body, ContentType: contentType}
}

// ConvertCalls returns the parts received by each convert call.
func (fb *FakeBackend) ConvertCalls() [][]ReceivedPart {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	out := make([][]ReceivedPart, len(fb.convertCalls))
	copy(out, fb.convertCalls)
	return out
}

// IndexCalls returns the bodies received by the index endpoint.
func (fb *FakeBackend) IndexCalls() []ReceivedIndex {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	out := make([]ReceivedIndex, len(fb.indexCalls))
	copy(out, fb.indexCalls)
	return out
}

// LastMediaType returns the media type of the last convert request.
func (fb *FakeBackend) LastMediaType() string {
	fb.mu.RLock()
	defer fb.mu.RUnlock()
	return fb.lastMediaType
}

func (fb *FakeBackend) handleConvert(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		writeJSON(w, http.StatusUnprocessableEntity, `{"detail":"expected multipart body"}`)
		return
	}

	var parts []ReceivedPart
	reader := multipart.NewReader(r.Body, params["boundary"])
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, `{"detail":"broken multipart body"}`)
			return
		}
		data, _ := io.ReadAll(part)
		parts = append(parts, ReceivedPart{
			FieldName:   part.FormName(),
			FileName:    part.FileName(),
			ContentType: part.Header.Get("Content-Type"),
			Data:        data,
		})
		part.Close()
	}

	fb.mu.Lock()
	fb.convertCalls = append(fb.convertCalls, parts)
	fb.lastMediaType = mediaType
	reply := fb.convertReply
	fb.mu.Unlock()

	writeReply(w, reply)
}

func (fb *FakeBackend) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var body ReceivedIndex
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, `{"detail":"invalid json"}`)
		return
	}

	fb.mu.Lock()
	fb.indexCalls = append(fb.indexCalls, body)
	reply := fb.indexReply
	fb.mu.Unlock()

	writeReply(w, reply)
}

func writeReply(w http.ResponseWriter, reply Response) {
	contentType := reply.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(reply.Status)
	io.WriteString(w, reply.Body)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	writeReply(w, Response{Status: status, Body: body})
}

// UnreachableURL returns the address of a server that has already been shut down.
func UnreachableURL() string {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}
