package websocket

import (
	"context"
	"sync"

	"compliance-navigator-be/pkg/renderer"

	"github.com/google/uuid"
)

// Surface is the browser-side mount point of one workbench. It remembers the
// mounted view and the last pushed state so a browser that connects late, or
// reconnects, is brought up to date.
type Surface struct {
	id  uuid.UUID
	hub *Hub

	mu       sync.Mutex
	view     *renderer.View
	state    []byte
	platform string
}

var _ renderer.Surface = (*Surface)(nil)

func TopicFor(workbenchID uuid.UUID) string {
	return "surface." + workbenchID.String()
}

func (s *Surface) ID() uuid.UUID { return s.id }

func (s *Surface) Topic() string { return TopicFor(s.id) }

func (s *Surface) Mount(_ context.Context, view renderer.View) error {
	data, err := encode(TypeMount, view)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.view != nil {
		s.mu.Unlock()
		return renderer.ErrSurfaceBusy
	}
	s.view = &view
	s.mu.Unlock()

	s.hub.Send(s.id, data)
	return nil
}

func (s *Surface) Unmount(_ context.Context, mountID string) error {
	s.mu.Lock()
	if s.view == nil || s.view.MountID != mountID {
		s.mu.Unlock()
		return nil
	}
	s.view = nil
	s.mu.Unlock()

	data, err := encode(TypeUnmount, map[string]string{"mount_id": mountID})
	if err != nil {
		return err
	}
	s.hub.Send(s.id, data)
	return nil
}

func (s *Surface) Dispatch(_ context.Context, cmd renderer.Command) error {
	data, err := encode(TypeCommand, cmd)
	if err != nil {
		return err
	}
	s.hub.Send(s.id, data)
	return nil
}

// PushState sends a state snapshot to the browser and keeps it for replay.
func (s *Surface) PushState(state interface{}) error {
	data, err := encode(TypeState, state)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.state = data
	s.mu.Unlock()

	s.hub.Send(s.id, data)
	return nil
}

// Platform is the platform string the browser reported in its hello.
func (s *Surface) Platform() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.platform
}

func (s *Surface) setPlatform(p string) {
	s.mu.Lock()
	s.platform = p
	s.mu.Unlock()
}

// replay returns the messages a freshly connected browser needs.
func (s *Surface) replay() [][]byte {
	s.mu.Lock()
	view, state := s.view, s.state
	s.mu.Unlock()

	var out [][]byte
	if view != nil {
		if data, err := encode(TypeMount, view); err == nil {
			out = append(out, data)
		}
	}
	if state != nil {
		out = append(out, state)
	}
	return out
}
