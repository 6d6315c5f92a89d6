package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrPaperNotFound = goerr.New("paper not found")
	ErrNotPDF        = goerr.New("only PDF files are accepted")
)

// Paper is one indexed document as reported by the backend. Filename is the
// stable identifier for delete and for source references; SHA256 is the
// stable list key and the de-duplication signal for local uploads.
type Paper struct {
	Filename   string    `json:"filename"`
	Title      string    `json:"title"`
	PageCount  int       `json:"page_count"`
	ChunkCount int       `json:"chunk_count"`
	SHA256     string    `json:"sha256"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// UploadResult is the backend's acknowledgement of a single-paper upload.
type UploadResult struct {
	Status     string `json:"status"`
	Filename   string `json:"filename"`
	Title      string `json:"title"`
	PageCount  int    `json:"page_count"`
	ChunkCount int    `json:"chunk_count"`
}

// DeleteResult is the backend's acknowledgement of a paper deletion.
type DeleteResult struct {
	Status        string `json:"status"`
	Filename      string `json:"filename"`
	ChunksRemoved int    `json:"chunks_removed"`
}
