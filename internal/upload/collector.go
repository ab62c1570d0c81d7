// Package upload collects uploaded files from incoming requests and composes
// the multipart body forwarded to the backend.
package upload

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/pdf-gateway/backend/internal/models"
)

// Collector reads file parts of a multipart request into memory.
type Collector struct {
	field    string
	maxFiles int
	maxBytes int64
}

// NewCollector creates a collector for the given form field. maxBytes <= 0
// disables the size ceiling.
func NewCollector(field string, maxFiles int, maxBytes int64) *Collector {
	return &Collector{
		field:    field,
		maxFiles: maxFiles,
		maxBytes: maxBytes,
	}
}

// Collect buffers every file part of r under the collector's field, in the
// order they appear. Parts under other names are skipped.
func (c *Collector) Collect(r *http.Request) ([]models.FilePayload, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, ErrNoFiles
		}
		return nil, &MalformedRequestError{Err: err}
	}

	var (
		payloads []models.FilePayload
		total    int64
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &MalformedRequestError{Err: err}
		}

		name, ok := fileName(part)
		if !ok || part.FormName() != c.field {
			part.Close()
			continue
		}
		if c.maxFiles > 0 && len(payloads) == c.maxFiles {
			part.Close()
			return nil, &TooManyFilesError{Limit: c.maxFiles}
		}
		if !validFileName(name) {
			part.Close()
			return nil, &InvalidFileNameError{Name: name}
		}

		data, err := c.readPart(part, total)
		part.Close()
		if err != nil {
			return nil, err
		}
		total += int64(len(data))

		payloads = append(payloads, models.FilePayload{
			Name:        name,
			ContentType: part.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	if len(payloads) == 0 {
		return nil, ErrNoFiles
	}
	return payloads, nil
}

// readPart reads one part, failing as soon as the running total passes the ceiling.
func (c *Collector) readPart(part *multipart.Part, consumed int64) ([]byte, error) {
	if c.maxBytes <= 0 {
		data, err := io.ReadAll(part)
		if err != nil {
			return nil, &MalformedRequestError{Err: err}
		}
		return data, nil
	}

	remaining := c.maxBytes - consumed
	data, err := io.ReadAll(io.LimitReader(part, remaining+1))
	if err != nil {
		return nil, &MalformedRequestError{Err: err}
	}
	if int64(len(data)) > remaining {
		return nil, &models.PayloadTooLargeError{
			Stage: models.StageRequest,
			Limit: c.maxBytes,
			Size:  consumed + int64(len(data)),
		}
	}
	return data, nil
}

// Validate applies the collector's count and file name rules to payloads that
// arrived by another route.
func Validate(payloads []models.FilePayload, maxFiles int) error {
	if len(payloads) == 0 {
		return ErrNoFiles
	}
	if maxFiles > 0 && len(payloads) > maxFiles {
		return &TooManyFilesError{Limit: maxFiles}
	}
	for _, p := range payloads {
		if !validFileName(p.Name) {
			return &InvalidFileNameError{Name: p.Name}
		}
	}
	return nil
}

// validFileName reports whether name is free of control characters. RFC 2231
// parameters (filename*=UTF-8''...) can decode to raw CR/LF, which would break
// out of the part header when the name is forwarded.
func validFileName(name string) bool {
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return false
		}
	}
	return true
}

// fileName returns the client-supplied file name without the path cleanup
// multipart.Part.FileName applies.
func fileName(part *multipart.Part) (string, bool) {
	disposition := part.Header.Get("Content-Disposition")
	if disposition == "" {
		return "", false
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return "", false
	}
	name, ok := params["filename"]
	if !ok || name == "" {
		return "", false
	}
	return name, true
}
