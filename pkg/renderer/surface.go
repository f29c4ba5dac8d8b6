package renderer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// View is what gets mounted into a surface.
type View struct {
	MountID     string            `json:"mount_id"`
	Variant     Variant           `json:"variant"`
	URL         string            `json:"url"`
	DownloadURL string            `json:"download_url"`
	Title       string            `json:"title"`
	Options     map[string]string `json:"options,omitempty"`
}

type CommandType string

const (
	CommandSearch    CommandType = "search"     // programmatic search API
	CommandGoToPage  CommandType = "go_to_page" // programmatic page API
	CommandNavigate  CommandType = "navigate"   // reload the view at URL (fragment driven)
	CommandClipboard CommandType = "clipboard"
	CommandToast     CommandType = "toast"
)

// Command is an instruction for whatever is mounted on the surface.
type Command struct {
	Type             CommandType `json:"type"`
	MountID          string      `json:"mount_id,omitempty"`
	Term             string      `json:"term,omitempty"`
	Page             int         `json:"page,omitempty"`
	URL              string      `json:"url,omitempty"`
	Text             string      `json:"text,omitempty"`
	DismissAfterMsec int64       `json:"dismiss_after_ms,omitempty"`
}

// Surface is the single mount point for a rendered document. At most one view
// is mounted at a time; Mount fails with ErrSurfaceBusy otherwise.
type Surface interface {
	Mount(ctx context.Context, view View) error
	Unmount(ctx context.Context, mountID string) error
	Dispatch(ctx context.Context, cmd Command) error
	// Topic is where browser events for this surface are published.
	Topic() string
}

var ErrSurfaceBusy = errors.New("surface already has a mounted view")

type EventType string

const (
	EventReady       EventType = "ready"
	EventError       EventType = "error"
	EventPageChanged EventType = "page_changed"
)

// Event is reported by the browser about a mounted view.
type Event struct {
	MountID string    `json:"mount_id"`
	Type    EventType `json:"event"`
	Page    int       `json:"page,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

func EncodeEvent(e Event) (*message.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal renderer event: %w", err)
	}
	return message.NewMessage(watermill.NewUUID(), payload), nil
}

func DecodeEvent(msg *message.Message) (Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return Event{}, fmt.Errorf("unmarshal renderer event: %w", err)
	}
	return e, nil
}
