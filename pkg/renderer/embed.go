package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"compliance-navigator-be/pkg/proxy"

	"github.com/ThreeDotsLabs/watermill/message"
)

// EmbedStrategy mounts the rich embedded viewer. It needs a client credential,
// the shared SDK loader and a browser handshake before it counts as ready.
type EmbedStrategy struct {
	ClientID     string
	Loader       *SDKLoader
	Events       message.Subscriber
	ReadyTimeout time.Duration
	// OnFailure, when set, is called once if the viewer reports an error
	// after it became ready.
	OnFailure func(variant Variant, reason string)
}

func (s *EmbedStrategy) Variant() Variant { return VariantEmbed }

func (s *EmbedStrategy) Init(ctx context.Context, doc *proxy.ProxiedDocument, surface Surface) (Renderer, error) {
	if s.ClientID == "" {
		return nil, &InitError{Variant: VariantEmbed, Err: ErrMissingCredential}
	}
	if s.Loader == nil || s.Events == nil {
		return nil, &InitError{Variant: VariantEmbed, Err: ErrNotConfigured}
	}
	if err := s.Loader.Load(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &InitError{Variant: VariantEmbed, Err: err}
	}

	// The subscription lives as long as the renderer, not the init call.
	subCtx, unsubscribe := context.WithCancel(context.Background())
	events, err := s.Events.Subscribe(subCtx, surface.Topic())
	if err != nil {
		unsubscribe()
		return nil, &InitError{Variant: VariantEmbed, Err: fmt.Errorf("subscribe to surface events: %w", err)}
	}

	view := newView(VariantEmbed, doc.RelayURL, doc.Ref.SourceURL, doc.Ref.DisplayLabel)
	view.Options = map[string]string{
		"client_id": s.ClientID,
		"sdk_url":   s.Loader.URL,
		"file_name": doc.Ref.ID + "." + doc.ContentKind,
	}
	r := &embedRenderer{mounted: mounted{surface: surface, view: view}, unsubscribe: unsubscribe, onFailure: s.OnFailure}

	if err := surface.Mount(ctx, view); err != nil {
		unsubscribe()
		return nil, &InitError{Variant: VariantEmbed, Err: err}
	}

	if err := r.awaitReady(ctx, events, s.readyTimeout()); err != nil {
		if terr := r.Teardown(context.Background()); terr != nil {
			return nil, &TeardownError{Variant: VariantEmbed, Err: terr}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &InitError{Variant: VariantEmbed, Err: err}
	}

	go r.watch(events)
	return r, nil
}

func (s *EmbedStrategy) readyTimeout() time.Duration {
	if s.ReadyTimeout <= 0 {
		return 8 * time.Second
	}
	return s.ReadyTimeout
}

type embedRenderer struct {
	mounted
	unsubscribe context.CancelFunc
	onFailure   func(Variant, string)
	page        atomic.Int64
}

func (r *embedRenderer) awaitReady(ctx context.Context, events <-chan *message.Message, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return ErrHandshakeTimeout
		case msg, ok := <-events:
			if !ok {
				return errors.New("surface event stream closed")
			}
			msg.Ack()
			ev, err := DecodeEvent(msg)
			if err != nil || ev.MountID != r.view.MountID {
				continue
			}
			switch ev.Type {
			case EventReady:
				r.page.Store(1)
				return nil
			case EventError:
				return fmt.Errorf("viewer reported: %s", ev.Detail)
			}
		}
	}
}

// watch tracks page changes and viewer crashes until the subscription is
// cancelled.
func (r *embedRenderer) watch(events <-chan *message.Message) {
	reported := false
	for msg := range events {
		msg.Ack()
		ev, err := DecodeEvent(msg)
		if err != nil || ev.MountID != r.view.MountID {
			continue
		}
		switch ev.Type {
		case EventPageChanged:
			if ev.Page > 0 {
				r.page.Store(int64(ev.Page))
			}
		case EventError:
			if reported || r.onFailure == nil {
				continue
			}
			reported = true
			// The handler usually tears this renderer down, which closes events.
			go r.onFailure(VariantEmbed, ev.Detail)
		}
	}
}

func (r *embedRenderer) Variant() Variant { return VariantEmbed }

func (r *embedRenderer) Capability() Capability { return CanSearch | CanJumpToPage }

func (r *embedRenderer) CurrentPage() int { return int(r.page.Load()) }

func (r *embedRenderer) Search(ctx context.Context, term string) error {
	return r.dispatch(ctx, Command{Type: CommandSearch, Term: term})
}

func (r *embedRenderer) JumpToPage(ctx context.Context, page int) error {
	if page < 1 {
		return fmt.Errorf("invalid page %d", page)
	}
	return r.dispatch(ctx, Command{Type: CommandGoToPage, Page: page})
}

func (r *embedRenderer) Teardown(ctx context.Context) error {
	r.unsubscribe()
	return r.unmount(ctx)
}
