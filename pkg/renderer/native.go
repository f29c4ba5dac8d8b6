package renderer

import (
	"context"
	"fmt"

	"compliance-navigator-be/pkg/proxy"
)

// NativeStrategy hands the relay URL to the browser's built-in viewer. It is
// the last resort: page jumps work through #page=N, search does not.
type NativeStrategy struct {
	// Hint is shown next to the viewer, e.g. how to search by hand.
	Hint string
}

func (NativeStrategy) Variant() Variant { return VariantNative }

func (s NativeStrategy) Init(ctx context.Context, doc *proxy.ProxiedDocument, surface Surface) (Renderer, error) {
	view := newView(VariantNative, doc.RelayURL, doc.Ref.SourceURL, doc.Ref.DisplayLabel)
	if s.Hint != "" {
		view.Options = map[string]string{"hint": s.Hint}
	}
	if err := surface.Mount(ctx, view); err != nil {
		return nil, &InitError{Variant: VariantNative, Err: err}
	}
	return &nativeRenderer{mounted: mounted{surface: surface, view: view}}, nil
}

type nativeRenderer struct {
	mounted
}

func (r *nativeRenderer) Variant() Variant { return VariantNative }

func (r *nativeRenderer) Capability() Capability { return CanJumpToPage }

func (r *nativeRenderer) Search(context.Context, string) error {
	return ErrUnsupported
}

func (r *nativeRenderer) JumpToPage(ctx context.Context, page int) error {
	if page < 1 {
		return fmt.Errorf("invalid page %d", page)
	}
	return r.dispatch(ctx, Command{
		Type: CommandNavigate,
		URL:  fmt.Sprintf("%s#page=%d", r.view.URL, page),
		Page: page,
	})
}

func (r *nativeRenderer) Teardown(ctx context.Context) error {
	return r.unmount(ctx)
}
