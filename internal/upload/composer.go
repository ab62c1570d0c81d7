package upload

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/pdf-gateway/backend/internal/models"
)

// DefaultContentType is declared for payloads whose type the client did not send.
const DefaultContentType = "application/octet-stream"

// Body is a composed multipart request body.
type Body struct {
	Data        []byte
	ContentType string
}

// Len returns the body size in bytes.
func (b *Body) Len() int64 {
	return int64(len(b.Data))
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// Compose writes one part per payload under field, in order, carrying each
// payload's original file name and content type.
func Compose(field string, payloads []models.FilePayload) (*Body, error) {
	var buf bytes.Buffer
	buf.Grow(int(models.TotalSize(payloads)) + 256*len(payloads))

	w := multipart.NewWriter(&buf)
	for i, p := range payloads {
		if !validFileName(p.Name) {
			return nil, &InvalidFileNameError{Name: p.Name}
		}
		contentType := p.ContentType
		if contentType == "" {
			contentType = DefaultContentType
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(field), quoteEscaper.Replace(p.Name)))
		h.Set("Content-Type", contentType)

		part, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("creating part %d (%s): %w", i, p.Name, err)
		}
		if _, err := part.Write(p.Data); err != nil {
			return nil, fmt.Errorf("writing part %d (%s): %w", i, p.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	return &Body{
		Data:        buf.Bytes(),
		ContentType: w.FormDataContentType(),
	}, nil
}
