package renderer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type LoaderState int

const (
	LoaderNotLoaded LoaderState = iota
	LoaderLoading
	LoaderLoaded
)

func (s LoaderState) String() string {
	switch s {
	case LoaderLoading:
		return "loading"
	case LoaderLoaded:
		return "loaded"
	default:
		return "not_loaded"
	}
}

// SDKLoader makes sure the embed viewer script is reachable before any
// workbench tries to mount it. One loader is shared by the whole process.
//
// Lifecycle: not loaded -> loading -> loaded. Concurrent callers while loading
// share the single in-flight request. Once loaded it is never fetched again.
// A failed load drops back to not loaded so a later caller may retry.
type SDKLoader struct {
	URL  string
	HTTP *http.Client

	group singleflight.Group
	mu    sync.Mutex
	state LoaderState
}

func NewSDKLoader(url string, timeout time.Duration) *SDKLoader {
	return &SDKLoader{URL: url, HTTP: &http.Client{Timeout: timeout}}
}

func (l *SDKLoader) State() LoaderState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Load returns once the SDK is loaded, the shared attempt failed, or ctx ends.
// Cancelling ctx only abandons the wait; the shared request keeps going for
// the other callers.
func (l *SDKLoader) Load(ctx context.Context) error {
	if l.State() == LoaderLoaded {
		return nil
	}

	ch := l.group.DoChan("sdk", func() (interface{}, error) {
		l.mu.Lock()
		if l.state == LoaderLoaded {
			l.mu.Unlock()
			return nil, nil
		}
		l.state = LoaderLoading
		l.mu.Unlock()

		err := l.fetch()

		l.mu.Lock()
		if err != nil {
			l.state = LoaderNotLoaded
		} else {
			l.state = LoaderLoaded
		}
		l.mu.Unlock()
		return nil, err
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (l *SDKLoader) fetch() error {
	if l.URL == "" {
		return fmt.Errorf("%w: sdk url is empty", ErrNotConfigured)
	}
	res, err := l.HTTP.Get(l.URL)
	if err != nil {
		return fmt.Errorf("load embed sdk: %w", err)
	}
	defer res.Body.Close()
	io.Copy(io.Discard, io.LimitReader(res.Body, 4<<20))

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("load embed sdk: status %d", res.StatusCode)
	}
	return nil
}
