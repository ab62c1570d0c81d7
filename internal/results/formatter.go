package results

import "github.com/pdf-gateway/backend/internal/models"

// NewEnvelope builds the success response. filesSubmitted counts uploaded
// files, which can exceed the number of groups when the backend returns no
// chunks for a file.
func NewEnvelope(filesSubmitted int, flat []models.ChunkRecord, grouped *models.GroupedResult) *models.ConversionEnvelope {
	if flat == nil {
		flat = []models.ChunkRecord{}
	}
	if grouped == nil {
		grouped = models.NewGroupedResult()
	}
	return &models.ConversionEnvelope{
		Success:        true,
		TotalChunks:    len(flat),
		FilesProcessed: filesSubmitted,
		Results:        grouped,
		RawChunks:      flat,
	}
}
