// Package session coordinates one workbench: the selected document, the
// renderer showing it and the question/answer exchange whose citations point
// into it.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/pkg/answer"
	"compliance-navigator-be/pkg/citation"
	"compliance-navigator-be/pkg/corpus"
	"compliance-navigator-be/pkg/events"
	"compliance-navigator-be/pkg/navigation"
	"compliance-navigator-be/pkg/proxy"
	"compliance-navigator-be/pkg/renderer"
)

type DocumentLoader interface {
	Load(ctx context.Context, ref corpus.DocumentRef) (*proxy.ProxiedDocument, error)
}

type IndexBuilder interface {
	Build(ctx context.Context, pdf []byte) (navigation.Index, error)
}

// RendererChain is satisfied by *renderer.Chain.
type RendererChain interface {
	Initialize(ctx context.Context, doc *proxy.ProxiedDocument) (renderer.Renderer, error)
	Demote(ctx context.Context, doc *proxy.ProxiedDocument, failed renderer.Variant) (renderer.Renderer, error)
	Teardown(ctx context.Context) error
}

type Options struct {
	ID       string
	Loader   DocumentLoader
	Chain    RendererChain
	Answers  answer.Service
	Executor *navigation.Executor
	Logger   logger.ILogger

	// Optional collaborators.
	Indexer     IndexBuilder
	StaticIndex func(documentID string) navigation.Index
	Events      events.Publisher
	OnChange    func(Snapshot)

	TopK     int
	MaxWords int
}

type docState struct {
	ref    *corpus.DocumentRef
	status DocumentStatus
	err    error
}

type renderState struct {
	variant    renderer.Variant
	capability renderer.Capability
	state      renderer.State
	err        error
}

type qaState struct {
	seq        uint64
	question   string
	status     Status
	answerText string
	citations  []citation.Citation
	actions    []navigation.Action
	matches    []answer.Match
	err        error
}

// Coordinator is safe for concurrent use. mu guards state; renderMu
// serialises every renderer swap so teardown always precedes the next mount.
type Coordinator struct {
	id       string
	loader   DocumentLoader
	chain    RendererChain
	answers  answer.Service
	executor *navigation.Executor
	logger   logger.ILogger
	opts     Options

	renderMu sync.Mutex

	mu          sync.Mutex
	closed      bool
	epoch       uint64
	epochCtx    context.Context
	epochCancel context.CancelFunc
	doc         docState
	proxied     *proxy.ProxiedDocument
	index       navigation.Index
	generation  uint64
	active      renderer.Renderer
	render      renderState
	qa          qaState
	askCancel   context.CancelFunc
}

func New(opts Options) *Coordinator {
	epochCtx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		id:          opts.ID,
		loader:      opts.Loader,
		chain:       opts.Chain,
		answers:     opts.Answers,
		executor:    opts.Executor,
		logger:      opts.Logger,
		opts:        opts,
		epochCtx:    epochCtx,
		epochCancel: cancel,
		doc:         docState{status: DocumentNone},
		render:      renderState{state: renderer.StateUninitialized},
		qa:          qaState{status: StatusIdle},
	}
}

func (c *Coordinator) ID() string { return c.id }

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SelectDocument makes ref the workbench document. Any earlier load, renderer
// initialisation or question is cancelled and the visible answer is cleared.
// It returns once the document is rendered or has failed; an
// *renderer.ExhaustedError still leaves the document selected for questions.
func (c *Coordinator) SelectDocument(ctx context.Context, ref corpus.DocumentRef) (Snapshot, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	epoch, epochCtx := c.nextEpochLocked()
	c.cancelAskLocked()
	c.qa = qaState{seq: c.qa.seq, status: StatusIdle}
	c.doc = docState{ref: &ref, status: DocumentLoading}
	c.proxied = nil
	c.index = nil
	c.active = nil
	c.render = renderState{state: renderer.StateInitializing}
	c.mu.Unlock()
	c.notify()

	c.logger.Info("Workbench", "Document selected", map[string]interface{}{"workbench": c.id, "document": ref.ID})
	c.publish(events.DocumentSelected(c.id, ref.ID))

	loadCtx, done := bind(ctx, epochCtx)
	defer done()

	doc, err := c.loader.Load(loadCtx, ref)
	if err != nil {
		return c.failLoad(epoch, err)
	}
	index := c.buildIndex(loadCtx, doc)

	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	if !c.current(epoch) {
		return Snapshot{}, ErrSuperseded
	}

	r, initErr := c.chain.Initialize(loadCtx, doc)

	c.mu.Lock()
	if c.epoch != epoch || c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrSuperseded
	}
	var exhausted *renderer.ExhaustedError
	if initErr != nil && !errors.As(initErr, &exhausted) {
		c.doc.status = DocumentFailed
		c.doc.err = initErr
		c.render = renderState{state: renderer.StateUninitialized}
		c.mu.Unlock()
		c.notify()
		return c.Snapshot(), initErr
	}
	c.proxied = doc
	c.index = index
	c.doc.status = DocumentReady
	c.commitRendererLocked(r, initErr)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify()
	c.publish(events.RendererChanged(c.id, ref.ID, string(snap.Renderer.Variant), snap.Renderer.Generation))
	return snap, initErr
}

func (c *Coordinator) failLoad(epoch uint64, err error) (Snapshot, error) {
	c.mu.Lock()
	if c.epoch != epoch || c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrSuperseded
	}
	c.doc.status = DocumentFailed
	c.doc.err = err
	c.render = renderState{state: renderer.StateUninitialized}
	c.mu.Unlock()

	c.logger.Warn("Workbench", "Document load failed", map[string]interface{}{"workbench": c.id, "error": err.Error()})

	// The previous document's renderer must not outlive its selection.
	c.renderMu.Lock()
	if c.current(epoch) {
		c.chain.Teardown(context.Background())
	}
	c.renderMu.Unlock()

	c.notify()
	return c.Snapshot(), err
}

func (c *Coordinator) buildIndex(ctx context.Context, doc *proxy.ProxiedDocument) navigation.Index {
	var static, extracted navigation.Index
	if c.opts.StaticIndex != nil {
		static = c.opts.StaticIndex(doc.Ref.ID)
	}
	if c.opts.Indexer != nil {
		built, err := c.opts.Indexer.Build(ctx, doc.Bytes)
		if err != nil {
			c.logger.Warn("Workbench", "Clause index extraction failed", map[string]interface{}{"document": doc.Ref.ID, "error": err.Error()})
		}
		extracted = built
	}
	return navigation.Merge(static, extracted)
}

// Ask sends question to the answer service. Only the latest call updates
// state; earlier ones still running return ErrSuperseded.
func (c *Coordinator) Ask(ctx context.Context, question string) (Snapshot, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Snapshot{}, ErrBlankQuestion
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if c.doc.ref == nil || c.doc.status == DocumentFailed {
		c.mu.Unlock()
		return Snapshot{}, ErrNoDocument
	}
	c.cancelAskLocked()
	seq := c.qa.seq
	epoch := c.epoch
	ref := *c.doc.ref
	askCtx, cancel := context.WithCancel(ctx)
	c.askCancel = cancel
	c.qa.question = question
	c.qa.status = StatusInFlight
	c.qa.err = nil
	c.mu.Unlock()
	c.notify()
	defer cancel()

	res, err := c.answers.Ask(askCtx, answer.Request{
		Question:          question,
		DocumentReference: ref.ID,
		TopK:              c.opts.TopK,
		MaxWords:          c.opts.MaxWords,
	})

	c.mu.Lock()
	if c.qa.seq != seq || c.epoch != epoch || c.closed {
		c.mu.Unlock()
		c.logger.Debug("Workbench", "Dropped superseded answer", map[string]interface{}{"workbench": c.id, "seq": seq})
		return Snapshot{}, ErrSuperseded
	}
	c.askCancel = nil

	if err != nil {
		serviceErr := &AnswerServiceError{Err: err}
		c.qa.status = StatusFailed
		c.qa.err = serviceErr
		snap := c.snapshotLocked()
		c.mu.Unlock()

		c.logger.Error("Workbench", "Answer service failed", map[string]interface{}{"workbench": c.id, "document": ref.ID, "error": err})
		c.notify()
		c.publish(events.QuestionFailed(c.id, ref.ID, err))
		return snap, serviceErr
	}

	c.qa.status = StatusDone
	c.qa.answerText = res.AnswerText
	c.qa.citations = citation.Extract(res.AnswerText)
	c.qa.matches = res.Matches
	c.qa.actions = navigation.ResolveAll(c.qa.citations, c.render.capability, c.index, c.generation)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify()
	c.publish(events.QuestionAnswered(c.id, ref.ID, len(snap.Question.Actions)))
	return snap, nil
}

// ActivateCitation runs the action bound to the citation at ordinal.
func (c *Coordinator) ActivateCitation(ctx context.Context, ordinal int) (navigation.Action, error) {
	c.mu.Lock()
	if ordinal < 0 || ordinal >= len(c.qa.actions) {
		c.mu.Unlock()
		return navigation.Action{}, ErrCitationNotFound
	}
	action := c.qa.actions[ordinal]
	c.mu.Unlock()

	return action, c.Execute(ctx, action)
}

// Execute runs an action against the active renderer. Actions resolved for an
// older renderer generation fail with navigation.ErrStaleAction.
func (c *Coordinator) Execute(ctx context.Context, action navigation.Action) error {
	c.mu.Lock()
	generation := c.generation
	var target navigation.Target
	if c.active != nil {
		target = c.active
	}
	c.mu.Unlock()

	return c.executor.Execute(ctx, action, generation, target)
}

// ReportRendererFailure handles a renderer that broke after it became ready:
// the chain moves on to the next variant and every citation is re-resolved.
func (c *Coordinator) ReportRendererFailure(ctx context.Context, variant renderer.Variant, reason string) (Snapshot, error) {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if c.proxied == nil {
		c.mu.Unlock()
		return Snapshot{}, ErrNoDocument
	}
	if c.active == nil || c.active.Variant() != variant {
		c.mu.Unlock()
		return Snapshot{}, ErrNotActiveRenderer
	}
	epoch, epochCtx, doc := c.epoch, c.epochCtx, c.proxied
	c.active = nil
	c.render = renderState{state: renderer.StateInitializing}
	c.mu.Unlock()
	c.notify()

	c.logger.Warn("Workbench", "Renderer failed after ready", map[string]interface{}{"workbench": c.id, "variant": variant, "reason": reason})

	demoteCtx, done := bind(ctx, epochCtx)
	defer done()
	r, err := c.chain.Demote(demoteCtx, doc, variant)

	c.mu.Lock()
	if c.epoch != epoch || c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrSuperseded
	}
	var exhausted *renderer.ExhaustedError
	if err != nil && !errors.As(err, &exhausted) {
		c.render = renderState{state: renderer.StateUninitialized, err: err}
		c.reresolveLocked()
		c.mu.Unlock()
		c.notify()
		return c.Snapshot(), err
	}
	c.commitRendererLocked(r, err)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.notify()
	c.publish(events.RendererChanged(c.id, doc.Ref.ID, string(snap.Renderer.Variant), snap.Renderer.Generation))
	return snap, err
}

// Close cancels all work and unmounts the renderer. It is idempotent.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.epochCancel()
	c.cancelAskLocked()
	c.mu.Unlock()

	c.renderMu.Lock()
	defer c.renderMu.Unlock()
	return c.chain.Teardown(ctx)
}

// commitRendererLocked installs the outcome of a chain run as a new
// generation and re-resolves the bound actions against it.
func (c *Coordinator) commitRendererLocked(r renderer.Renderer, err error) {
	c.generation++
	c.active = r
	if r != nil {
		c.render = renderState{variant: r.Variant(), capability: r.Capability(), state: renderer.StateReady}
	} else {
		c.render = renderState{capability: renderer.None, state: renderer.StateExhausted, err: err}
	}
	c.reresolveLocked()
}

func (c *Coordinator) reresolveLocked() {
	if len(c.qa.citations) == 0 {
		return
	}
	c.qa.actions = navigation.ResolveAll(c.qa.citations, c.render.capability, c.index, c.generation)
}

func (c *Coordinator) nextEpochLocked() (uint64, context.Context) {
	c.epoch++
	c.epochCancel()
	c.epochCtx, c.epochCancel = context.WithCancel(context.Background())
	return c.epoch, c.epochCtx
}

// cancelAskLocked invalidates whatever question is in flight.
func (c *Coordinator) cancelAskLocked() {
	c.qa.seq++
	if c.askCancel != nil {
		c.askCancel()
		c.askCancel = nil
	}
}

func (c *Coordinator) current(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch == epoch && !c.closed
}

func (c *Coordinator) notify() {
	if c.opts.OnChange != nil {
		c.opts.OnChange(c.Snapshot())
	}
}

func (c *Coordinator) publish(event events.Event) {
	if c.opts.Events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.opts.Events.Publish(ctx, event); err != nil {
		c.logger.Warn("Workbench", "Failed to publish event", map[string]interface{}{"type": event.EventType(), "error": err.Error()})
	}
}

// bind derives a context that ends with either parent or scope.
func bind(parent, scope context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(scope, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
