package services

import (
	"sync"
	"time"

	"csvmapper/pkg/contracts/domain"
)

// PreviewRows is the number of rows included in table previews
const PreviewRows = 20

type upload struct {
	info  domain.UploadInfo
	table *domain.Table
}

// Session holds the state of one mapping interaction sequence: the two
// uploads, the last merge and column selection, and the last pivot.
// Every field past mu is guarded by it.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	updatedAt time.Time
	uploads   map[domain.Slot]*upload
	mergeReq  *domain.MergeRequest
	merged    *domain.Table
	summary   *domain.MergeSummary
	kept      []string
	filtered  *domain.Table
	pivotReq  *domain.PivotRequest
	pivot     *domain.Table
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		CreatedAt: now,
		updatedAt: now,
		uploads:   make(map[domain.Slot]*upload, 2),
	}
}

// reset drops uploads and every derived table
func (s *Session) reset(now time.Time) {
	s.uploads = make(map[domain.Slot]*upload, 2)
	s.clearMerge()
	s.updatedAt = now
}

func (s *Session) clearMerge() {
	s.mergeReq = nil
	s.merged = nil
	s.summary = nil
	s.kept = nil
	s.filtered = nil
	s.clearPivot()
}

func (s *Session) clearPivot() {
	s.pivotReq = nil
	s.pivot = nil
}

// table returns the table for a column listing: an upload slot or the merged stage
func (s *Session) table(name string) *domain.Table {
	switch name {
	case string(domain.SlotA), string(domain.SlotB):
		if u := s.uploads[domain.Slot(name)]; u != nil {
			return u.table
		}
		return nil
	case string(domain.StageMerged):
		return s.merged
	}
	return nil
}

// TablePreview is the first rows of a table with its full size
type TablePreview struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows"`
}

func previewOf(t *domain.Table, n int) *TablePreview {
	if t == nil {
		return nil
	}
	if n > len(t.Rows) {
		n = len(t.Rows)
	}
	rows := make([][]string, n)
	for i := 0; i < n; i++ {
		rows[i] = append([]string(nil), t.Rows[i]...)
	}
	return &TablePreview{
		Columns:   append([]string(nil), t.Header...),
		Rows:      rows,
		TotalRows: len(t.Rows),
	}
}

// MergeView describes the merged stage of a session
type MergeView struct {
	Request     domain.MergeRequest `json:"request"`
	Summary     domain.MergeSummary `json:"summary"`
	Columns     []string            `json:"columns"`
	KeptColumns []string            `json:"kept_columns"`
	Preview     *TablePreview       `json:"preview"`
}

// PivotView describes the pivot stage of a session
type PivotView struct {
	Request domain.PivotRequest `json:"request"`
	Preview *TablePreview       `json:"preview"`
}

// SessionView is a point-in-time snapshot of a session
type SessionView struct {
	ID        string                            `json:"id"`
	CreatedAt time.Time                         `json:"created_at"`
	UpdatedAt time.Time                         `json:"updated_at"`
	Uploads   map[domain.Slot]domain.UploadInfo `json:"uploads"`
	Merge     *MergeView                        `json:"merge,omitempty"`
	Pivot     *PivotView                        `json:"pivot,omitempty"`
}

func (s *Session) mergeViewLocked() *MergeView {
	if s.merged == nil {
		return nil
	}
	return &MergeView{
		Request:     *s.mergeReq,
		Summary:     *s.summary,
		Columns:     append([]string(nil), s.merged.Header...),
		KeptColumns: append([]string(nil), s.kept...),
		Preview:     previewOf(s.filtered, PreviewRows),
	}
}

func (s *Session) pivotViewLocked() *PivotView {
	if s.pivot == nil {
		return nil
	}
	return &PivotView{
		Request: *s.pivotReq,
		Preview: previewOf(s.pivot, PreviewRows),
	}
}

func (s *Session) viewLocked() SessionView {
	uploads := make(map[domain.Slot]domain.UploadInfo, len(s.uploads))
	for slot, u := range s.uploads {
		uploads[slot] = u.info
	}
	return SessionView{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.updatedAt,
		Uploads:   uploads,
		Merge:     s.mergeViewLocked(),
		Pivot:     s.pivotViewLocked(),
	}
}

// View returns a snapshot of the session
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}
