package dto

import (
	"time"

	"compliance-navigator-be/pkg/navigation"
	"compliance-navigator-be/pkg/session"

	"github.com/google/uuid"
)

type CreateWorkbenchResponse struct {
	Id        uuid.UUID        `json:"id"`
	SocketURL string           `json:"socket_url"`
	CreatedAt time.Time        `json:"created_at"`
	State     session.Snapshot `json:"state"`
}

// WorkbenchResponse is the workbench state after an operation. Superseded is
// set when a newer request replaced this one before it finished; State then
// reflects the newer request.
type WorkbenchResponse struct {
	State      session.Snapshot `json:"state"`
	Superseded bool             `json:"superseded,omitempty"`
}

type SelectDocumentRequest struct {
	DocumentId string `json:"document_id" validate:"required"`
}

type AskRequest struct {
	Question string `json:"question" validate:"required,max=2000"`
}

// ActivateCitationRequest optionally pins the renderer generation the client
// resolved the citation against.
type ActivateCitationRequest struct {
	Generation *uint64 `json:"generation"`
}

type ActivateCitationResponse struct {
	Action navigation.Action `json:"action"`
}

type RendererFailureRequest struct {
	Variant string `json:"variant" validate:"required,oneof=embed pdfjs native"`
	Reason  string `json:"reason" validate:"max=500"`
}
