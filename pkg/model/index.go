package model

import "fmt"

// IndexState is the backend indexing job state. The job moves from idle
// through indexing to exactly one of the terminal states.
type IndexState string

const (
	IndexStateIdle     IndexState = "idle"
	IndexStateIndexing IndexState = "indexing"
	IndexStateDone     IndexState = "done"
	IndexStateError    IndexState = "error"
)

// Terminal reports whether no further transitions occur without a new start
func (s IndexState) Terminal() bool {
	return s == IndexStateDone || s == IndexStateError
}

const (
	IndexAckStarted        = "started"
	IndexAckAlreadyRunning = "already_indexing"
)

// IndexAck is the backend's reply to a start-indexing request. Count
// fields are best-effort; not every backend version reports them.
type IndexAck struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	PapersIndexed int    `json:"papers_indexed"`
	TotalChunks   int    `json:"total_chunks"`
}

// AlreadyRunning reports that a job was in flight before our request;
// the caller should fall through to polling rather than treat it as a failure.
func (a *IndexAck) AlreadyRunning() bool {
	return a.Status == IndexAckAlreadyRunning
}

// IndexStatus is one polled snapshot of the indexing job, matching the
// GET /index/status wire shape.
type IndexStatus struct {
	State        IndexState `json:"state"`
	CurrentPaper string     `json:"current_paper"`
	PapersDone   int        `json:"papers_done"`
	TotalPapers  int        `json:"total_papers"`
	TotalChunks  int        `json:"total_chunks"`
	Error        string     `json:"error,omitempty"`
}

// Summary renders the terminal outcome of an indexing job, empty for
// non-terminal snapshots.
func (s *IndexStatus) Summary() string {
	switch s.State {
	case IndexStateDone:
		return fmt.Sprintf("Indexed %d papers (%d chunks)", s.PapersDone, s.TotalChunks)
	case IndexStateError:
		detail := s.Error
		if detail == "" {
			detail = "unknown error"
		}
		return fmt.Sprintf("Indexing failed: %s", detail)
	default:
		return ""
	}
}
