package session

import (
	"compliance-navigator-be/pkg/answer"
	"compliance-navigator-be/pkg/citation"
	"compliance-navigator-be/pkg/corpus"
	"compliance-navigator-be/pkg/navigation"
	"compliance-navigator-be/pkg/renderer"
)

type Status string

const (
	StatusIdle     Status = "idle"
	StatusInFlight Status = "in_flight"
	StatusDone     Status = "done"
	StatusFailed   Status = "failed"
)

type DocumentStatus string

const (
	DocumentNone    DocumentStatus = "none"
	DocumentLoading DocumentStatus = "loading"
	DocumentReady   DocumentStatus = "ready"
	DocumentFailed  DocumentStatus = "failed"
)

// Snapshot is a copy of the workbench state, safe to serialise and share.
type Snapshot struct {
	WorkbenchID string       `json:"workbench_id"`
	Document    DocumentView `json:"document"`
	Renderer    RendererView `json:"renderer"`
	Question    QuestionView `json:"question"`
}

type DocumentView struct {
	Ref    *corpus.DocumentRef `json:"ref,omitempty"`
	Status DocumentStatus      `json:"status"`
	Error  string              `json:"error,omitempty"`
}

type RendererView struct {
	Variant     renderer.Variant    `json:"variant,omitempty"`
	Capability  renderer.Capability `json:"capability"`
	State       renderer.State      `json:"state"`
	Generation  uint64              `json:"generation"`
	Page        int                 `json:"page,omitempty"` // Last page the viewer reported
	Error       string              `json:"error,omitempty"`
	DownloadURL string              `json:"download_url,omitempty"`
}

type QuestionView struct {
	Seq        uint64              `json:"seq"`
	Question   string              `json:"question,omitempty"`
	Status     Status              `json:"status"`
	AnswerText string              `json:"answer_text,omitempty"`
	Segments   []citation.Segment  `json:"segments"`
	Actions    []navigation.Action `json:"actions"`
	Matches    []answer.Match      `json:"matches"`
	Error      string              `json:"error,omitempty"`
}

func (c *Coordinator) snapshotLocked() Snapshot {
	s := Snapshot{
		WorkbenchID: c.id,
		Document:    DocumentView{Status: c.doc.status},
		Renderer: RendererView{
			Variant:    c.render.variant,
			Capability: c.render.capability,
			State:      c.render.state,
			Generation: c.generation,
		},
		Question: QuestionView{
			Seq:        c.qa.seq,
			Question:   c.qa.question,
			Status:     c.qa.status,
			AnswerText: c.qa.answerText,
			Segments:   citation.Segments(c.qa.answerText),
			Actions:    append([]navigation.Action{}, c.qa.actions...),
			Matches:    append([]answer.Match{}, c.qa.matches...),
		},
	}
	if paged, ok := c.active.(renderer.Paged); ok {
		s.Renderer.Page = paged.CurrentPage()
	}
	if c.doc.ref != nil {
		ref := *c.doc.ref
		s.Document.Ref = &ref
	}
	if c.doc.err != nil {
		s.Document.Error = c.doc.err.Error()
	}
	if c.render.err != nil {
		s.Renderer.Error = c.render.err.Error()
		if c.doc.ref != nil {
			s.Renderer.DownloadURL = c.doc.ref.SourceURL
		}
	}
	if c.qa.err != nil {
		s.Question.Error = c.qa.err.Error()
	}
	return s
}
