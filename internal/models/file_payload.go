package models

// FilePayload is one uploaded file held in memory for the duration of a request.
type FilePayload struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"-"`
}

// Size returns the payload length in bytes.
func (p FilePayload) Size() int64 {
	return int64(len(p.Data))
}

// TotalSize sums the sizes of all payloads.
func TotalSize(payloads []FilePayload) int64 {
	var total int64
	for _, p := range payloads {
		total += p.Size()
	}
	return total
}
