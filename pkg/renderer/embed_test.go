package renderer_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"compliance-navigator-be/pkg/renderer"
	"compliance-navigator-be/pkg/renderer/renderertest"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type embedFixture struct {
	pubsub   *gochannel.GoChannel
	surface  *renderertest.Surface
	strategy *renderer.EmbedStrategy
}

func newEmbedFixture(t *testing.T, reply func(view renderer.View) *renderer.Event) *embedFixture {
	t.Helper()

	sdk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("window.AdobeDC = {};"))
	}))
	t.Cleanup(sdk.Close)

	pubsub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { pubsub.Close() })

	surface := renderertest.NewSurface("wb-embed")
	surface.OnMount = func(view renderer.View) {
		ev := reply(view)
		if ev == nil {
			return
		}
		go func() {
			msg, err := renderer.EncodeEvent(*ev)
			if err == nil {
				pubsub.Publish(surface.Topic(), msg)
			}
		}()
	}

	return &embedFixture{
		pubsub:  pubsub,
		surface: surface,
		strategy: &renderer.EmbedStrategy{
			ClientID:     "client-123",
			Loader:       renderer.NewSDKLoader(sdk.URL, time.Second),
			Events:       pubsub,
			ReadyTimeout: 500 * time.Millisecond,
		},
	}
}

func TestEmbedReadyHandshake(t *testing.T) {
	f := newEmbedFixture(t, func(view renderer.View) *renderer.Event {
		return &renderer.Event{MountID: view.MountID, Type: renderer.EventReady}
	})

	r, err := f.strategy.Init(context.Background(), testDocument(), f.surface)
	require.NoError(t, err)
	assert.Equal(t, renderer.VariantEmbed, r.Variant())
	assert.Equal(t, renderer.CanSearch|renderer.CanJumpToPage, r.Capability())

	view := f.surface.Current()
	require.NotNil(t, view)
	assert.Equal(t, "client-123", view.Options["client_id"])
	assert.Equal(t, "abpi-code-2024.pdf", view.Options["file_name"])

	require.NoError(t, r.Search(context.Background(), "Clause 19.1"))
	cmds := f.surface.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, renderer.Command{Type: renderer.CommandSearch, MountID: view.MountID, Term: "Clause 19.1"}, cmds[0])

	require.NoError(t, r.Teardown(context.Background()))
	assert.Nil(t, f.surface.Current())
}

func TestEmbedTracksPageChanges(t *testing.T) {
	f := newEmbedFixture(t, func(view renderer.View) *renderer.Event {
		return &renderer.Event{MountID: view.MountID, Type: renderer.EventReady}
	})

	r, err := f.strategy.Init(context.Background(), testDocument(), f.surface)
	require.NoError(t, err)
	defer r.Teardown(context.Background())

	paged, ok := r.(interface{ CurrentPage() int })
	require.True(t, ok)
	assert.Equal(t, 1, paged.CurrentPage())

	view := f.surface.Current()
	msg, err := renderer.EncodeEvent(renderer.Event{MountID: view.MountID, Type: renderer.EventPageChanged, Page: 12})
	require.NoError(t, err)
	require.NoError(t, f.pubsub.Publish(f.surface.Topic(), msg))

	assert.Eventually(t, func() bool { return paged.CurrentPage() == 12 }, time.Second, 10*time.Millisecond)
}

func TestEmbedReportsViewerErrorAfterReady(t *testing.T) {
	f := newEmbedFixture(t, func(view renderer.View) *renderer.Event {
		return &renderer.Event{MountID: view.MountID, Type: renderer.EventReady}
	})
	reports := make(chan string, 4)
	f.strategy.OnFailure = func(variant renderer.Variant, reason string) {
		assert.Equal(t, renderer.VariantEmbed, variant)
		reports <- reason
	}

	r, err := f.strategy.Init(context.Background(), testDocument(), f.surface)
	require.NoError(t, err)
	defer r.Teardown(context.Background())

	view := f.surface.Current()
	publish := func(ev renderer.Event) {
		msg, err := renderer.EncodeEvent(ev)
		require.NoError(t, err)
		require.NoError(t, f.pubsub.Publish(f.surface.Topic(), msg))
	}
	publish(renderer.Event{MountID: "other-mount", Type: renderer.EventError, Detail: "not ours"})
	publish(renderer.Event{MountID: view.MountID, Type: renderer.EventError, Detail: "viewer crashed"})
	publish(renderer.Event{MountID: view.MountID, Type: renderer.EventError, Detail: "viewer crashed again"})

	select {
	case reason := <-reports:
		assert.Contains(t, reason, "viewer crashed")
	case <-time.After(time.Second):
		t.Fatal("viewer error was not reported")
	}
	select {
	case reason := <-reports:
		t.Fatalf("reported twice: %s", reason)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEmbedInitFailures(t *testing.T) {
	t.Run("missing credential", func(t *testing.T) {
		f := newEmbedFixture(t, func(renderer.View) *renderer.Event { return nil })
		f.strategy.ClientID = ""

		_, err := f.strategy.Init(context.Background(), testDocument(), f.surface)
		assert.ErrorIs(t, err, renderer.ErrMissingCredential)
		assert.Empty(t, f.surface.Mounts())
	})

	t.Run("viewer reports error", func(t *testing.T) {
		f := newEmbedFixture(t, func(view renderer.View) *renderer.Event {
			return &renderer.Event{MountID: view.MountID, Type: renderer.EventError, Detail: "domain not allowed"}
		})

		_, err := f.strategy.Init(context.Background(), testDocument(), f.surface)
		var initErr *renderer.InitError
		require.ErrorAs(t, err, &initErr)
		assert.Contains(t, err.Error(), "domain not allowed")
		assert.Nil(t, f.surface.Current(), "failed view is unmounted")
	})

	t.Run("no handshake", func(t *testing.T) {
		f := newEmbedFixture(t, func(renderer.View) *renderer.Event { return nil })
		f.strategy.ReadyTimeout = 50 * time.Millisecond

		_, err := f.strategy.Init(context.Background(), testDocument(), f.surface)
		assert.ErrorIs(t, err, renderer.ErrHandshakeTimeout)
		assert.Nil(t, f.surface.Current())
	})

	t.Run("events for another mount are ignored", func(t *testing.T) {
		f := newEmbedFixture(t, func(renderer.View) *renderer.Event {
			return &renderer.Event{MountID: "someone-else", Type: renderer.EventReady}
		})
		f.strategy.ReadyTimeout = 100 * time.Millisecond

		_, err := f.strategy.Init(context.Background(), testDocument(), f.surface)
		assert.ErrorIs(t, err, renderer.ErrHandshakeTimeout)
	})
}
