// Package results reshapes the backend's flat chunk list into the response
// returned to clients.
package results

import "github.com/pdf-gateway/backend/internal/models"

// Group partitions records by file name in a single stable pass. Keys follow
// first appearance; records keep their relative order within a key.
func Group(records []models.ChunkRecord) *models.GroupedResult {
	grouped := models.NewGroupedResult()
	for _, record := range records {
		grouped.Append(record.FileName(), record)
	}
	return grouped
}
