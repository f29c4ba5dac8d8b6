package session_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/pkg/answer"
	"compliance-navigator-be/pkg/corpus"
	"compliance-navigator-be/pkg/events"
	"compliance-navigator-be/pkg/navigation"
	"compliance-navigator-be/pkg/proxy"
	"compliance-navigator-be/pkg/renderer"
	"compliance-navigator-be/pkg/renderer/renderertest"
	"compliance-navigator-be/pkg/session"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	docOne = corpus.DocumentRef{ID: "abpi-2024", DisplayLabel: "ABPI Code 2024", SourceURL: "https://example.org/abpi-2024.pdf"}
	docTwo = corpus.DocumentRef{ID: "efpia-2019", DisplayLabel: "EFPIA Code 2019", SourceURL: "https://example.org/efpia-2019.pdf"}
)

type fakeLoader struct {
	mu    sync.Mutex
	errs  map[string]error
	gates map[string]chan struct{}
}

func (l *fakeLoader) Load(ctx context.Context, ref corpus.DocumentRef) (*proxy.ProxiedDocument, error) {
	l.mu.Lock()
	err, gate := l.errs[ref.ID], l.gates[ref.ID]
	l.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &proxy.ProxiedDocument{
		Ref:         ref,
		Bytes:       []byte("%PDF-1.7"),
		ContentKind: "pdf",
		RelayURL:    proxy.RelayURLFor("http://localhost:3000/api/relay", ref.SourceURL),
	}, nil
}

type reply struct {
	res *answer.Response
	err error
}

// fakeAnswers answers from a table. Gated questions wait for their reply and
// ignore cancellation, like a response already on the wire.
type fakeAnswers struct {
	mu       sync.Mutex
	replies  map[string]reply
	gates    map[string]chan reply
	requests []answer.Request
}

func newFakeAnswers() *fakeAnswers {
	return &fakeAnswers{replies: map[string]reply{}, gates: map[string]chan reply{}}
}

func (f *fakeAnswers) text(question, answerText string) {
	f.replies[question] = reply{res: &answer.Response{AnswerText: answerText, Matches: []answer.Match{}}}
}

func (f *fakeAnswers) gate(question string) chan reply {
	ch := make(chan reply, 1)
	f.gates[question] = ch
	return ch
}

func (f *fakeAnswers) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeAnswers) Ask(_ context.Context, req answer.Request) (*answer.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	r, gate := f.replies[req.Question], f.gates[req.Question]
	f.mu.Unlock()

	if gate != nil {
		r = <-gate
	}
	return r.res, r.err
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e.EventType())
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type harness struct {
	coord   *session.Coordinator
	surface *renderertest.Surface
	loader  *fakeLoader
	answers *fakeAnswers
	events  *recorder
}

func newHarness(t *testing.T, surface *renderertest.Surface, strategies ...renderer.Strategy) *harness {
	t.Helper()
	if surface == nil {
		surface = renderertest.NewSurface("wb-test")
	}
	log := logger.NewNopLogger()
	h := &harness{
		surface: surface,
		loader:  &fakeLoader{errs: map[string]error{}, gates: map[string]chan struct{}{}},
		answers: newFakeAnswers(),
		events:  &recorder{},
	}
	h.coord = session.New(session.Options{
		ID:       "wb-test",
		Loader:   h.loader,
		Chain:    renderer.NewChain(surface, log, strategies...),
		Answers:  h.answers,
		Executor: &navigation.Executor{Logger: log, Clipboard: navigation.SurfaceHints{Surface: surface}, Notifier: navigation.SurfaceHints{Surface: surface}},
		Logger:   log,
		StaticIndex: func(id string) navigation.Index {
			if id == docOne.ID {
				return navigation.Index{"19.1": 42}
			}
			return nil
		},
		Events:   h.events,
		TopK:     5,
		MaxWords: 120,
	})
	t.Cleanup(func() { h.coord.Close(context.Background()) })
	return h
}

func pdfjs() renderer.Strategy { return &renderer.PDFJSStrategy{ViewerPath: "/viewer.html"} }

// embedStrategy returns an embed strategy whose browser side answers every
// mount with a ready event.
func embedStrategy(t *testing.T, surface *renderertest.Surface) renderer.Strategy {
	t.Helper()
	sdk := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	t.Cleanup(sdk.Close)

	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	t.Cleanup(func() { bus.Close() })

	surface.OnMount = func(view renderer.View) {
		if view.Variant != renderer.VariantEmbed {
			return
		}
		go func() {
			msg, _ := renderer.EncodeEvent(renderer.Event{MountID: view.MountID, Type: renderer.EventReady})
			bus.Publish(surface.Topic(), msg)
		}()
	}
	return &renderer.EmbedStrategy{
		ClientID:     "client-id",
		Loader:       renderer.NewSDKLoader(sdk.URL, time.Second),
		Events:       bus,
		ReadyTimeout: time.Second,
	}
}

func TestGiftsScenario(t *testing.T) {
	surface := renderertest.NewSurface("wb-test")
	h := newHarness(t, surface, embedStrategy(t, surface), pdfjs(), renderer.NativeStrategy{})
	h.answers.text("What does the code say about gifts?", "Gifts to HCPs are restricted (Clause 19.1).")
	ctx := context.Background()

	snap, err := h.coord.SelectDocument(ctx, docOne)
	require.NoError(t, err)
	assert.Equal(t, renderer.VariantEmbed, snap.Renderer.Variant)
	assert.Equal(t, renderer.StateReady, snap.Renderer.State)

	snap, err = h.coord.Ask(ctx, "What does the code say about gifts?")
	require.NoError(t, err)
	assert.Equal(t, session.StatusDone, snap.Question.Status)
	require.Len(t, snap.Question.Actions, 1)
	assert.Equal(t, "19.1", snap.Question.Actions[0].Citation.ClauseNumber)
	assert.Equal(t, navigation.ActionSearch, snap.Question.Actions[0].Kind)

	_, err = h.coord.ActivateCitation(ctx, 0)
	require.NoError(t, err)

	cmds := surface.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, renderer.CommandSearch, cmds[0].Type)
	assert.Equal(t, "Clause 19.1", cmds[0].Term)

	assert.Equal(t, answer.Request{
		Question:          "What does the code say about gifts?",
		DocumentReference: docOne.ID,
		TopK:              5,
		MaxWords:          120,
	}, h.answers.requests[0])
	assert.Equal(t, []string{events.TypeDocumentSelected, events.TypeRendererChanged, events.TypeQuestionAnswered}, h.events.types())
}

func TestAskRejectsBlankQuestion(t *testing.T) {
	h := newHarness(t, nil, pdfjs())
	_, err := h.coord.SelectDocument(context.Background(), docOne)
	require.NoError(t, err)

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := h.coord.Ask(context.Background(), q)
		assert.ErrorIs(t, err, session.ErrBlankQuestion)
	}
	assert.Zero(t, h.answers.calls())
}

func TestAskRequiresDocument(t *testing.T) {
	h := newHarness(t, nil, pdfjs())

	_, err := h.coord.Ask(context.Background(), "anything?")

	assert.ErrorIs(t, err, session.ErrNoDocument)
	assert.Zero(t, h.answers.calls())
}

func TestLastQuestionWins(t *testing.T) {
	h := newHarness(t, nil, pdfjs())
	q1 := h.answers.gate("first?")
	h.answers.text("second?", "Second answer, Clause 2.")
	ctx := context.Background()

	_, err := h.coord.SelectDocument(ctx, docOne)
	require.NoError(t, err)

	firstErr := make(chan error, 1)
	go func() {
		_, err := h.coord.Ask(ctx, "first?")
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return h.answers.calls() == 1 }, time.Second, 5*time.Millisecond)

	snap, err := h.coord.Ask(ctx, "second?")
	require.NoError(t, err)
	assert.Equal(t, "Second answer, Clause 2.", snap.Question.AnswerText)

	// The first response arrives late.
	q1 <- reply{res: &answer.Response{AnswerText: "First answer, Clause 1."}}
	assert.ErrorIs(t, <-firstErr, session.ErrSuperseded)

	final := h.coord.Snapshot()
	assert.Equal(t, "second?", final.Question.Question)
	assert.Equal(t, "Second answer, Clause 2.", final.Question.AnswerText)
	require.Len(t, final.Question.Actions, 1)
	assert.Equal(t, "2", final.Question.Actions[0].Citation.ClauseNumber)
}

func TestDocumentSwitchInvalidatesQuestion(t *testing.T) {
	h := newHarness(t, nil, pdfjs())
	q := h.answers.gate("gifts?")
	ctx := context.Background()

	_, err := h.coord.SelectDocument(ctx, docOne)
	require.NoError(t, err)

	askErr := make(chan error, 1)
	go func() {
		_, err := h.coord.Ask(ctx, "gifts?")
		askErr <- err
	}()
	require.Eventually(t, func() bool { return h.answers.calls() == 1 }, time.Second, 5*time.Millisecond)

	_, err = h.coord.SelectDocument(ctx, docTwo)
	require.NoError(t, err)

	q <- reply{res: &answer.Response{AnswerText: "Gifts are restricted (Clause 19.1)."}}
	assert.ErrorIs(t, <-askErr, session.ErrSuperseded)

	snap := h.coord.Snapshot()
	assert.Equal(t, docTwo.ID, snap.Document.Ref.ID)
	assert.Empty(t, snap.Question.AnswerText)
	assert.Empty(t, snap.Question.Actions)
	assert.Equal(t, session.StatusIdle, snap.Question.Status)
}

func TestDocumentSwitchClearsAnswer(t *testing.T) {
	h := newHarness(t, nil, pdfjs())
	h.answers.text("scope?", "See Clause 1.")
	ctx := context.Background()

	_, err := h.coord.SelectDocument(ctx, docOne)
	require.NoError(t, err)
	_, err = h.coord.Ask(ctx, "scope?")
	require.NoError(t, err)

	snap, err := h.coord.SelectDocument(ctx, docTwo)
	require.NoError(t, err)
	assert.Empty(t, snap.Question.AnswerText)
	assert.Empty(t, snap.Question.Actions)
	assert.Zero(t, h.surface.Overlaps())
}

func TestAnswerFailureKeepsPreviousAnswer(t *testing.T) {
	h := newHarness(t, nil, pdfjs())
	h.answers.text("scope?", "See Clause 1.")
	h.answers.replies["broken?"] = reply{err: &answer.StatusError{Status: 503, Message: "unavailable"}}
	ctx := context.Background()

	_, err := h.coord.SelectDocument(ctx, docOne)
	require.NoError(t, err)
	_, err = h.coord.Ask(ctx, "scope?")
	require.NoError(t, err)

	snap, err := h.coord.Ask(ctx, "broken?")

	var serviceErr *session.AnswerServiceError
	require.ErrorAs(t, err, &serviceErr)
	var statusErr *answer.StatusError
	assert.ErrorAs(t, err, &statusErr)

	assert.Equal(t, session.StatusFailed, snap.Question.Status)
	assert.Contains(t, snap.Question.Error, "unavailable")
	assert.Equal(t, "See Clause 1.", snap.Question.AnswerText)
	assert.Len(t, snap.Question.Actions, 1)
	assert.Contains(t, h.events.types(), events.TypeQuestionFailed)
}

func TestZeroCitationsIsValid(t *testing.T) {
	h := newHarness(t, nil, pdfjs())
	h.answers.text("hello?", "The code does not address this.")
	ctx := context.Background()

	_, err := h.coord.SelectDocument(ctx, docOne)
	require.NoError(t, err)
	snap, err := h.coord.Ask(ctx, "hello?")

	require.NoError(t, err)
	assert.Equal(t, session.StatusDone, snap.Question.Status)
	assert.Empty(t, snap.Question.Actions)
	_, err = h.coord.ActivateCitation(ctx, 0)
	assert.ErrorIs(t, err, session.ErrCitationNotFound)
}

func TestRendererExhaustedKeepsDocumentUsable(t *testing.T) {
	surface := renderertest.NewSurface("wb-test")
	surface.MountErr[renderer.VariantNative] = errors.New("blocked by browser")
	h := newHarness(t, surface, &renderer.EmbedStrategy{}, &renderer.PDFJSStrategy{}, renderer.NativeStrategy{})
	h.answers.text("gifts?", "See Clause 19.1.")
	ctx := context.Background()

	snap, err := h.coord.SelectDocument(ctx, docOne)

	var exhausted *renderer.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, renderer.StateExhausted, snap.Renderer.State)
	assert.Equal(t, docOne.SourceURL, snap.Renderer.DownloadURL)
	assert.Equal(t, session.DocumentReady, snap.Document.Status)

	snap, err = h.coord.Ask(ctx, "gifts?")
	require.NoError(t, err)
	require.Len(t, snap.Question.Actions, 1)
	assert.Equal(t, navigation.ActionClipboardHint, snap.Question.Actions[0].Kind)

	_, err = h.coord.ActivateCitation(ctx, 0)
	require.NoError(t, err)
	cmds := surface.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, renderer.CommandClipboard, cmds[0].Type)
	assert.Equal(t, renderer.CommandToast, cmds[1].Type)
}

func TestRendererFailureReresolvesActions(t *testing.T) {
	h := newHarness(t, nil, pdfjs(), renderer.NativeStrategy{})
	h.answers.text("gifts?", "See Clause 19.1 and Clause 7.")
	ctx := context.Background()

	_, err := h.coord.SelectDocument(ctx, docOne)
	require.NoError(t, err)
	before, err := h.coord.Ask(ctx, "gifts?")
	require.NoError(t, err)
	require.Len(t, before.Question.Actions, 2)
	assert.Equal(t, navigation.ActionSearch, before.Question.Actions[0].Kind)

	_, err = h.coord.ReportRendererFailure(ctx, renderer.VariantNative, "not active")
	assert.ErrorIs(t, err, session.ErrNotActiveRenderer)

	after, err := h.coord.ReportRendererFailure(ctx, renderer.VariantPDFJS, "viewer crashed")
	require.NoError(t, err)
	assert.Equal(t, renderer.VariantNative, after.Renderer.Variant)
	assert.Greater(t, after.Renderer.Generation, before.Renderer.Generation)

	require.Len(t, after.Question.Actions, 2)
	assert.Equal(t, navigation.ActionPageJump, after.Question.Actions[0].Kind)
	assert.Equal(t, 42, after.Question.Actions[0].Page)
	assert.Equal(t, navigation.ActionClipboardHint, after.Question.Actions[1].Kind)

	assert.ErrorIs(t, h.coord.Execute(ctx, before.Question.Actions[0]), navigation.ErrStaleAction)

	_, err = h.coord.ActivateCitation(ctx, 0)
	require.NoError(t, err)
	cmds := h.surface.Commands()
	require.NotEmpty(t, cmds)
	last := cmds[len(cmds)-1]
	assert.Equal(t, renderer.CommandNavigate, last.Type)
	assert.Equal(t, 42, last.Page)
	assert.Zero(t, h.surface.Overlaps())
}

func TestViewerErrorDemotesEmbed(t *testing.T) {
	surface := renderertest.NewSurface("wb-test")
	embed := embedStrategy(t, surface).(*renderer.EmbedStrategy)
	h := newHarness(t, surface, embed, pdfjs())
	embed.OnFailure = func(variant renderer.Variant, reason string) {
		h.coord.ReportRendererFailure(context.Background(), variant, reason)
	}
	ctx := context.Background()

	snap, err := h.coord.SelectDocument(ctx, docOne)
	require.NoError(t, err)
	require.Equal(t, renderer.VariantEmbed, snap.Renderer.Variant)
	assert.Equal(t, 1, snap.Renderer.Page)
	generation := snap.Renderer.Generation

	view := surface.Current()
	require.NotNil(t, view)
	msg, err := renderer.EncodeEvent(renderer.Event{MountID: view.MountID, Type: renderer.EventError, Detail: "viewer crashed"})
	require.NoError(t, err)
	require.NoError(t, embed.Events.(*gochannel.GoChannel).Publish(surface.Topic(), msg))

	require.Eventually(t, func() bool {
		return h.coord.Snapshot().Renderer.Variant == renderer.VariantPDFJS
	}, 2*time.Second, 10*time.Millisecond)

	snap = h.coord.Snapshot()
	assert.Greater(t, snap.Renderer.Generation, generation)
	assert.Zero(t, snap.Renderer.Page)
	assert.Zero(t, surface.Overlaps())
}

func TestLoadFailureTearsDownPreviousRenderer(t *testing.T) {
	h := newHarness(t, nil, pdfjs())
	h.loader.errs[docTwo.ID] = &proxy.UpstreamError{Status: 404, Body: "not found"}
	ctx := context.Background()

	_, err := h.coord.SelectDocument(ctx, docOne)
	require.NoError(t, err)
	require.NotNil(t, h.surface.Current())

	snap, err := h.coord.SelectDocument(ctx, docTwo)

	var upstream *proxy.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.Equal(t, session.DocumentFailed, snap.Document.Status)
	assert.Nil(t, h.surface.Current())

	_, err = h.coord.Ask(ctx, "anything?")
	assert.ErrorIs(t, err, session.ErrNoDocument)
}

func TestNewerSelectionCancelsLoad(t *testing.T) {
	h := newHarness(t, nil, pdfjs())
	h.loader.gates[docOne.ID] = make(chan struct{})
	ctx := context.Background()

	firstErr := make(chan error, 1)
	go func() {
		_, err := h.coord.SelectDocument(ctx, docOne)
		firstErr <- err
	}()
	require.Eventually(t, func() bool {
		return h.coord.Snapshot().Document.Status == session.DocumentLoading
	}, time.Second, 5*time.Millisecond)

	snap, err := h.coord.SelectDocument(ctx, docTwo)
	require.NoError(t, err)
	assert.Equal(t, docTwo.ID, snap.Document.Ref.ID)

	assert.ErrorIs(t, <-firstErr, session.ErrSuperseded)
	mounts := h.surface.Mounts()
	require.Len(t, mounts, 1)
	assert.Contains(t, mounts[0].URL, "efpia-2019")
}

func TestCloseTearsDown(t *testing.T) {
	h := newHarness(t, nil, pdfjs())
	ctx := context.Background()

	_, err := h.coord.SelectDocument(ctx, docOne)
	require.NoError(t, err)

	require.NoError(t, h.coord.Close(ctx))
	assert.Nil(t, h.surface.Current())

	_, err = h.coord.SelectDocument(ctx, docTwo)
	assert.ErrorIs(t, err, session.ErrClosed)
	assert.NoError(t, h.coord.Close(ctx))
}
