package reconcile

import (
	"fmt"
	"strings"

	"cardsheets/internal/platform/docstore"
)

type WriteKind int

const (
	WriteSet WriteKind = iota
	WriteMerge
	WriteUpdate
	WriteDelete
)

func (k WriteKind) String() string {
	switch k {
	case WriteSet:
		return "set"
	case WriteMerge:
		return "merge"
	case WriteUpdate:
		return "update"
	case WriteDelete:
		return "delete"
	}
	return "unknown"
}

// Write is one staged document mutation.
type Write struct {
	Kind WriteKind
	Path string
	Data docstore.Document
}

// Plan is the outcome of reconciling a request against committed state:
// the ordered writes to commit as one batch plus the summary counters.
type Plan struct {
	Writes           []Write
	CardsUpdated     int
	TemplatesUpdated int
	ProfilesUpdated  int
	SoftFailures     int
	Messages         []string
}

func (p *Plan) stage(kind WriteKind, path string, data docstore.Document) {
	p.Writes = append(p.Writes, Write{Kind: kind, Path: path, Data: data})
}

func (p *Plan) note(format string, args ...interface{}) {
	p.Messages = append(p.Messages, fmt.Sprintf(format, args...))
}

// HasWrites reports whether committing the plan would change anything.
func (p *Plan) HasWrites() bool {
	return len(p.Writes) > 0
}

// Apply stages every write of the plan on b, in order.
func (p *Plan) Apply(b docstore.Batch) {
	for _, w := range p.Writes {
		switch w.Kind {
		case WriteSet:
			b.Set(w.Path, w.Data)
		case WriteMerge:
			b.Merge(w.Path, w.Data)
		case WriteUpdate:
			b.Update(w.Path, w.Data)
		case WriteDelete:
			b.Delete(w.Path)
		}
	}
}

// Result is the response summary. It is produced whether or not a commit happened.
type Result struct {
	Success               bool   `json:"success"`
	Message               string `json:"message"`
	UpdatedCardsCount     int    `json:"updatedCardsCount"`
	UpdatedTemplatesCount int    `json:"updatedTemplatesCount"`
	UpdatedProfilesCount  int    `json:"updatedProfilesCount"`
	Committed             bool   `json:"-"`
}

func (p *Plan) Result(committed bool) *Result {
	message := strings.Join(p.Messages, "; ")
	if message == "" {
		message = "No changes"
	}
	return &Result{
		Success:               true,
		Message:               message,
		UpdatedCardsCount:     p.CardsUpdated,
		UpdatedTemplatesCount: p.TemplatesUpdated,
		UpdatedProfilesCount:  p.ProfilesUpdated,
		Committed:             committed,
	}
}
