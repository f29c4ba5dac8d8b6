// Package renderertest provides an in-memory Surface for tests.
package renderertest

import (
	"context"
	"sync"

	"compliance-navigator-be/pkg/renderer"
)

// Surface records what is mounted and dispatched. OnMount, when set, runs after
// a successful mount and may be used to simulate the browser.
type Surface struct {
	ID      string
	OnMount func(renderer.View)
	// MountErr, keyed by variant, makes Mount fail for that variant.
	MountErr map[renderer.Variant]error

	mu         sync.Mutex
	unmountErr error
	current    *renderer.View
	mounts     []renderer.View
	unmounts   []string
	commands   []renderer.Command
	overlaps   int
}

func NewSurface(id string) *Surface {
	return &Surface{ID: id, MountErr: map[renderer.Variant]error{}}
}

func (s *Surface) Topic() string { return "surface." + s.ID }

func (s *Surface) Mount(_ context.Context, view renderer.View) error {
	s.mu.Lock()
	if err := s.MountErr[view.Variant]; err != nil {
		s.mu.Unlock()
		return err
	}
	if s.current != nil {
		s.overlaps++
		s.mu.Unlock()
		return renderer.ErrSurfaceBusy
	}
	v := view
	s.current = &v
	s.mounts = append(s.mounts, view)
	hook := s.OnMount
	s.mu.Unlock()

	if hook != nil {
		hook(view)
	}
	return nil
}

// FailUnmounts makes every Unmount return err and leave the view mounted.
// Pass nil to recover.
func (s *Surface) FailUnmounts(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unmountErr = err
}

func (s *Surface) Unmount(_ context.Context, mountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unmountErr != nil {
		return s.unmountErr
	}
	s.unmounts = append(s.unmounts, mountID)
	if s.current != nil && s.current.MountID == mountID {
		s.current = nil
	}
	return nil
}

func (s *Surface) Dispatch(_ context.Context, cmd renderer.Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commands = append(s.commands, cmd)
	return nil
}

// Current is the mounted view, or nil.
func (s *Surface) Current() *renderer.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	v := *s.current
	return &v
}

func (s *Surface) Mounts() []renderer.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]renderer.View(nil), s.mounts...)
}

func (s *Surface) Unmounts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.unmounts...)
}

func (s *Surface) Commands() []renderer.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]renderer.Command(nil), s.commands...)
}

// Overlaps counts Mount calls made while another view was still mounted.
func (s *Surface) Overlaps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overlaps
}
