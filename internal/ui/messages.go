package ui

import (
	"github.com/linuxmatters/mouthpiece/internal/processor"
)

// FileStartMsg indicates a new file has started processing
type FileStartMsg struct {
	FileIndex int
	FileName  string
}

// StageMsg reports that a cleaning stage is about to run.
// Index counts from 0 over the enabled stages.
type StageMsg struct {
	Stage processor.StageID
	Index int
	Total int
}

// FileCompleteMsg indicates a file has finished processing. Result is nil
// when the file could not be read or written.
type FileCompleteMsg struct {
	FileIndex int
	Result    *processor.ProcessingResult
	Error     error
}

// AllCompleteMsg indicates all files have been processed
type AllCompleteMsg struct{}
