package proxy

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"compliance-navigator-be/pkg/corpus"

	"github.com/gabriel-vasile/mimetype"
)

// Kind describes what a loaded document is expected to be.
type Kind struct {
	Name     string // "pdf"
	MIMEType string // "application/pdf"
}

var KindPDF = Kind{Name: "pdf", MIMEType: "application/pdf"}

// ProxiedDocument is a validated payload for one DocumentRef. RelayURL is the
// same-origin address a browser renderer may load the same bytes from.
type ProxiedDocument struct {
	Ref         corpus.DocumentRef
	Bytes       []byte
	ContentKind string
	RelayURL    string
}

// Client loads documents through the same-origin relay, never from the
// original host directly.
type Client struct {
	RelayURL string
	Kind     Kind
	MaxBytes int64
	HTTP     *http.Client
}

func NewClient(relayURL string, timeout time.Duration) *Client {
	return &Client{
		RelayURL: relayURL,
		Kind:     KindPDF,
		MaxBytes: 50 * 1024 * 1024,
		HTTP:     &http.Client{Timeout: timeout},
	}
}

// RelayURLFor builds <relay>?url=<percent-encoded source>.
func RelayURLFor(relay, source string) string {
	sep := "?"
	if strings.Contains(relay, "?") {
		sep = "&"
	}
	return relay + sep + "url=" + url.QueryEscape(source)
}

// Load fetches ref through the relay and validates the payload. Calling it
// repeatedly for the same ref is safe.
func (c *Client) Load(ctx context.Context, ref corpus.DocumentRef) (*ProxiedDocument, error) {
	target := RelayURLFor(c.RelayURL, ref.SourceURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create relay request: %w", err)
	}
	req.Header.Set("Accept", c.Kind.MIMEType+", */*;q=0.1")

	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &FetchError{URL: target, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, c.MaxBytes+1))
	if err != nil {
		return nil, &FetchError{URL: target, Err: fmt.Errorf("read body: %w", err)}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &UpstreamError{Status: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if int64(len(body)) > c.MaxBytes {
		return nil, &UpstreamError{Status: http.StatusRequestEntityTooLarge, Body: fmt.Sprintf("document exceeds %d bytes", c.MaxBytes)}
	}

	if err := c.checkKind(res.Header.Get("Content-Type"), body); err != nil {
		return nil, err
	}

	return &ProxiedDocument{
		Ref:         ref,
		Bytes:       body,
		ContentKind: c.Kind.Name,
		RelayURL:    target,
	}, nil
}

// checkKind accepts the payload only when its signature matches the expected
// kind. A matching signature wins over a wrong declared type; a declared
// type without the signature is rejected, which catches HTML error pages
// and truncated bodies served as PDF.
func (c *Client) checkKind(declared string, body []byte) error {
	detected := mimetype.Detect(body)
	if len(body) > 0 && detected.Is(c.Kind.MIMEType) {
		return nil
	}
	return &ContentTypeError{
		Expected: c.Kind.Name,
		Declared: declared,
		Detected: detected.String(),
	}
}
