package renderer

import (
	"context"
	"fmt"
	"net/url"

	"compliance-navigator-be/pkg/proxy"
)

// PDFJSStrategy mounts the same-origin pdf.js viewer. It has a visible find
// box; programmatic search and page jumps go through the URL fragment.
type PDFJSStrategy struct {
	ViewerPath string
}

func (s *PDFJSStrategy) Variant() Variant { return VariantPDFJS }

func (s *PDFJSStrategy) Init(ctx context.Context, doc *proxy.ProxiedDocument, surface Surface) (Renderer, error) {
	if s.ViewerPath == "" {
		return nil, &InitError{Variant: VariantPDFJS, Err: ErrNotConfigured}
	}

	viewerURL := s.ViewerPath + "?file=" + url.QueryEscape(doc.RelayURL)
	view := newView(VariantPDFJS, viewerURL, doc.Ref.SourceURL, doc.Ref.DisplayLabel)
	if err := surface.Mount(ctx, view); err != nil {
		return nil, &InitError{Variant: VariantPDFJS, Err: err}
	}
	return &pdfjsRenderer{mounted: mounted{surface: surface, view: view}}, nil
}

type pdfjsRenderer struct {
	mounted
}

func (r *pdfjsRenderer) Variant() Variant { return VariantPDFJS }

func (r *pdfjsRenderer) Capability() Capability { return CanSearch | CanJumpToPage }

func (r *pdfjsRenderer) Search(ctx context.Context, term string) error {
	return r.dispatch(ctx, Command{
		Type: CommandNavigate,
		URL:  r.view.URL + "#search=" + url.PathEscape(term) + "&phrase=true",
		Term: term,
	})
}

func (r *pdfjsRenderer) JumpToPage(ctx context.Context, page int) error {
	if page < 1 {
		return fmt.Errorf("invalid page %d", page)
	}
	return r.dispatch(ctx, Command{
		Type: CommandNavigate,
		URL:  fmt.Sprintf("%s#page=%d", r.view.URL, page),
		Page: page,
	})
}

func (r *pdfjsRenderer) Teardown(ctx context.Context) error {
	return r.unmount(ctx)
}
