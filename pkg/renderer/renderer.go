package renderer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"compliance-navigator-be/pkg/proxy"
)

// Variant names a rendering backend.
type Variant string

const (
	VariantEmbed  Variant = "embed"
	VariantPDFJS  Variant = "pdfjs"
	VariantNative Variant = "native"
)

// Capability is a set of optional navigation features. The zero value is None.
type Capability uint8

const (
	CanSearch Capability = 1 << iota
	CanJumpToPage

	None Capability = 0
)

func (c Capability) Has(flag Capability) bool {
	return flag != None && c&flag == flag
}

func (c Capability) String() string {
	if c == None {
		return "none"
	}
	var parts []string
	if c.Has(CanSearch) {
		parts = append(parts, "search")
	}
	if c.Has(CanJumpToPage) {
		parts = append(parts, "page_jump")
	}
	return strings.Join(parts, "|")
}

func (c Capability) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Renderer is a mounted document view. Search and JumpToPage return
// ErrUnsupported when Capability lacks the matching flag.
type Renderer interface {
	Variant() Variant
	Capability() Capability
	Search(ctx context.Context, term string) error
	JumpToPage(ctx context.Context, page int) error
	Teardown(ctx context.Context) error
}

// Paged is implemented by renderers that know which page the user is on.
type Paged interface {
	CurrentPage() int
}

// Strategy knows how to bring one variant up on a surface.
type Strategy interface {
	Variant() Variant
	Init(ctx context.Context, doc *proxy.ProxiedDocument, surface Surface) (Renderer, error)
}

var (
	ErrUnsupported       = errors.New("operation not supported by active renderer")
	ErrMissingCredential = errors.New("embed client credential is not configured")
	ErrNotConfigured     = errors.New("renderer is not configured")
	ErrHandshakeTimeout  = errors.New("renderer did not report ready in time")
	ErrTornDown          = errors.New("renderer has been torn down")
)

// InitError is a recoverable failure of one variant; the chain moves on.
type InitError struct {
	Variant Variant
	Err     error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s renderer init failed: %v", e.Variant, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// TeardownError means the previous view could not be unmounted. No other
// variant is tried while it may still occupy the surface.
type TeardownError struct {
	Variant Variant
	Err     error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("%s renderer teardown failed: %v", e.Variant, e.Err)
}

func (e *TeardownError) Unwrap() error { return e.Err }

// ExhaustedError means every variant failed for a document. DownloadURL lets
// the user fetch the file manually.
type ExhaustedError struct {
	DocumentID  string
	DownloadURL string
	Attempts    []error
}

func (e *ExhaustedError) Error() string {
	msgs := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		msgs = append(msgs, a.Error())
	}
	return fmt.Sprintf("no renderer could display document %s (%s)", e.DocumentID, strings.Join(msgs, "; "))
}

func (e *ExhaustedError) Unwrap() []error { return e.Attempts }
