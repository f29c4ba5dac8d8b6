package model

import (
	"time"

	"compliance-navigator-be/internal/websocket"
	"compliance-navigator-be/pkg/session"

	"github.com/google/uuid"
)

// Workbench is one user's live session: a coordinator plus the browser
// surface its renderers mount into. It only lives in memory.
type Workbench struct {
	ID          uuid.UUID
	Coordinator *session.Coordinator
	Surface     *websocket.Surface
	CreatedAt   time.Time
}
