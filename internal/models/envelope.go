package models

// ConversionEnvelope is the success response of the conversion endpoint.
type ConversionEnvelope struct {
	Success        bool           `json:"success" msgpack:"success"`
	TotalChunks    int            `json:"total_chunks" msgpack:"total_chunks"`
	FilesProcessed int            `json:"files_processed" msgpack:"files_processed"`
	Results        *GroupedResult `json:"results" msgpack:"results"`
	RawChunks      []ChunkRecord  `json:"raw_chunks" msgpack:"raw_chunks"`
}
