package renderer

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// mounted holds the surface bookkeeping every variant shares.
type mounted struct {
	surface Surface
	view    View

	mu       sync.Mutex
	torn     bool
	released bool
}

func newView(variant Variant, url, downloadURL, title string) View {
	return View{
		MountID:     uuid.NewString(),
		Variant:     variant,
		URL:         url,
		DownloadURL: downloadURL,
		Title:       title,
	}
}

func (m *mounted) dispatch(ctx context.Context, cmd Command) error {
	m.mu.Lock()
	torn := m.torn
	m.mu.Unlock()
	if torn {
		return ErrTornDown
	}
	cmd.MountID = m.view.MountID
	return m.surface.Dispatch(ctx, cmd)
}

// unmount is idempotent once it has succeeded. Commands are refused from the
// first attempt on; a failed unmount may be retried.
func (m *mounted) unmount(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return nil
	}
	m.torn = true
	if err := m.surface.Unmount(ctx, m.view.MountID); err != nil {
		return err
	}
	m.released = true
	return nil
}
