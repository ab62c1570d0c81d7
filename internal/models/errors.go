package models

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Stage identifies where a size ceiling was hit.
type Stage string

const (
	StageRequest  Stage = "request"
	StageOutbound Stage = "outbound"
	StageResponse Stage = "response"
)

// PayloadTooLargeError reports a body that exceeded the configured ceiling.
type PayloadTooLargeError struct {
	Stage Stage
	Limit int64
	Size  int64 // bytes seen when the ceiling was hit; may be a lower bound
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("%s body exceeds limit of %s (got at least %s)",
		e.Stage, humanize.IBytes(uint64(e.Limit)), humanize.IBytes(uint64(e.Size)))
}
