package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"compliance-navigator-be/pkg/corpus"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pdfBytes  = []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj\n%%EOF\n")
	htmlBytes = []byte("<!DOCTYPE html><html><body>Access denied</body></html>")
	ref       = corpus.DocumentRef{ID: "abpi", DisplayLabel: "ABPI", SourceURL: "https://www.abpi.org.uk/code 2024.pdf?v=1"}
)

func relay(t *testing.T, status int, contentType string, body []byte) (*httptest.Server, *atomic.Value) {
	t.Helper()
	var seen atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.Store(r.URL.Query().Get("url"))
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestLoadRoutesThroughRelay(t *testing.T) {
	srv, seen := relay(t, http.StatusOK, "application/pdf", pdfBytes)
	c := NewClient(srv.URL+"/api/relay", time.Second)

	doc, err := c.Load(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, ref.SourceURL, seen.Load())
	assert.Equal(t, pdfBytes, doc.Bytes)
	assert.Equal(t, "pdf", doc.ContentKind)
	assert.Equal(t, srv.URL+"/api/relay?url=https%3A%2F%2Fwww.abpi.org.uk%2Fcode+2024.pdf%3Fv%3D1", doc.RelayURL)
	assert.Equal(t, ref, doc.Ref)
}

func TestLoadIsRepeatable(t *testing.T) {
	srv, _ := relay(t, http.StatusOK, "application/pdf", pdfBytes)
	c := NewClient(srv.URL, time.Second)

	first, err := c.Load(context.Background(), ref)
	require.NoError(t, err)
	second, err := c.Load(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, first.Bytes, second.Bytes)
}

func TestLoadAcceptsSignatureDespiteWrongHeader(t *testing.T) {
	srv, _ := relay(t, http.StatusOK, "application/octet-stream", pdfBytes)

	_, err := NewClient(srv.URL, time.Second).Load(context.Background(), ref)
	assert.NoError(t, err)
}

func TestLoadRejectsDeclaredTypeWithUnrecognisedBytes(t *testing.T) {
	srv, _ := relay(t, http.StatusOK, "application/pdf", []byte("\x00\x01\x02garbage-not-a-pdf\xff\xfe"))

	doc, err := NewClient(srv.URL, time.Second).Load(context.Background(), ref)

	assert.Nil(t, doc)
	var ctErr *ContentTypeError
	require.True(t, errors.As(err, &ctErr), "got %v", err)
	assert.Equal(t, "application/pdf", ctErr.Declared)
	assert.NotContains(t, ctErr.Detected, "pdf")
}

func TestLoadRejectsHeaderWithoutSignature(t *testing.T) {
	srv, _ := relay(t, http.StatusOK, "application/pdf", htmlBytes)

	_, err := NewClient(srv.URL, time.Second).Load(context.Background(), ref)

	var ctErr *ContentTypeError
	require.True(t, errors.As(err, &ctErr), "got %v", err)
	assert.Equal(t, "application/pdf", ctErr.Declared)
	assert.Contains(t, ctErr.Detected, "text/html")
}

func TestLoadRejectsEmptyBody(t *testing.T) {
	srv, _ := relay(t, http.StatusOK, "application/pdf", nil)

	_, err := NewClient(srv.URL, time.Second).Load(context.Background(), ref)

	var ctErr *ContentTypeError
	assert.True(t, errors.As(err, &ctErr))
}

func TestLoadUpstreamError(t *testing.T) {
	srv, _ := relay(t, http.StatusBadGateway, "text/plain", []byte("upstream host refused connection\n"))

	_, err := NewClient(srv.URL, time.Second).Load(context.Background(), ref)

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusBadGateway, upErr.Status)
	assert.Equal(t, "upstream host refused connection", upErr.Body)
}

func TestLoadFetchError(t *testing.T) {
	srv, _ := relay(t, http.StatusOK, "application/pdf", pdfBytes)
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).Load(context.Background(), ref)

	var fetchErr *FetchError
	assert.True(t, errors.As(err, &fetchErr))
}

func TestLoadTooLarge(t *testing.T) {
	srv, _ := relay(t, http.StatusOK, "application/pdf", pdfBytes)
	c := NewClient(srv.URL, time.Second)
	c.MaxBytes = 8

	_, err := c.Load(context.Background(), ref)

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusRequestEntityTooLarge, upErr.Status)
}

func TestRelayURLForKeepsExistingQuery(t *testing.T) {
	assert.Equal(t, "/relay?tenant=a&url=https%3A%2F%2Fx.org%2Fa.pdf", RelayURLFor("/relay?tenant=a", "https://x.org/a.pdf"))
}
