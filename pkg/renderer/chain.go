package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/pkg/proxy"
)

type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateFailed        State = "failed"
	StateExhausted     State = "exhausted"
)

// Transition is reported for every state change of a chain.
type Transition struct {
	Variant Variant
	State   State
	Err     error
}

// Chain tries strategies in a fixed priority order and owns whichever renderer
// ends up mounted. All methods are serialised: a new initialisation always
// tears down the previous renderer before the first strategy runs, so two
// variants are never mounted on the surface at once.
type Chain struct {
	strategies []Strategy
	surface    Surface
	logger     logger.ILogger

	// OnTransition, when set, is called synchronously for each state change.
	OnTransition func(Transition)

	mu      sync.Mutex
	state   State
	current Renderer
}

func NewChain(surface Surface, log logger.ILogger, strategies ...Strategy) *Chain {
	return &Chain{
		strategies: strategies,
		surface:    surface,
		logger:     log,
		state:      StateUninitialized,
	}
}

func (c *Chain) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Current returns the mounted renderer, or nil.
func (c *Chain) Current() Renderer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Initialize mounts doc with the first strategy that succeeds.
func (c *Chain) Initialize(ctx context.Context, doc *proxy.ProxiedDocument) (Renderer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run(ctx, doc, 0)
}

// Demote replaces a renderer that broke after becoming ready, continuing with
// the strategies after failed. It is a no-op error if failed is not the
// variant currently mounted.
func (c *Chain) Demote(ctx context.Context, doc *proxy.ProxiedDocument, failed Variant) (Renderer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || c.current.Variant() != failed {
		return nil, fmt.Errorf("cannot demote %s: not the active renderer", failed)
	}
	next := len(c.strategies)
	for i, s := range c.strategies {
		if s.Variant() == failed {
			next = i + 1
			break
		}
	}
	return c.run(ctx, doc, next)
}

// Teardown unmounts the active renderer, if any. A renderer that fails to
// unmount stays current so the next call retries it.
func (c *Chain) Teardown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.teardownLocked(ctx); err != nil {
		c.state = StateFailed
		return err
	}
	c.state = StateUninitialized
	return nil
}

func (c *Chain) teardownLocked(ctx context.Context) error {
	if c.current == nil {
		return nil
	}
	r := c.current
	if err := r.Teardown(ctx); err != nil {
		c.logger.Error("RendererChain", "Teardown failed", map[string]interface{}{"variant": r.Variant(), "error": err.Error()})
		return &TeardownError{Variant: r.Variant(), Err: err}
	}
	c.current = nil
	return nil
}

func (c *Chain) run(ctx context.Context, doc *proxy.ProxiedDocument, from int) (Renderer, error) {
	// Teardown must finish before the next mount.
	if err := c.teardownLocked(context.WithoutCancel(ctx)); err != nil {
		c.transition(Transition{State: StateFailed, Err: err})
		return nil, err
	}

	var attempts []error
	for _, s := range c.strategies[from:] {
		c.transition(Transition{Variant: s.Variant(), State: StateInitializing})

		r, err := s.Init(ctx, doc, c.surface)
		if err == nil {
			c.current = r
			c.transition(Transition{Variant: r.Variant(), State: StateReady})
			return r, nil
		}

		if ctx.Err() != nil {
			c.transition(Transition{Variant: s.Variant(), State: StateUninitialized, Err: ctx.Err()})
			return nil, ctx.Err()
		}

		var teardownErr *TeardownError
		if errors.As(err, &teardownErr) {
			c.transition(Transition{Variant: s.Variant(), State: StateFailed, Err: err})
			return nil, err
		}

		var initErr *InitError
		if !errors.As(err, &initErr) {
			err = &InitError{Variant: s.Variant(), Err: err}
		}
		attempts = append(attempts, err)
		c.logger.Warn("RendererChain", "Variant failed, falling back", map[string]interface{}{
			"variant":  s.Variant(),
			"document": doc.Ref.ID,
			"error":    err.Error(),
		})
		c.transition(Transition{Variant: s.Variant(), State: StateFailed, Err: err})
	}

	exhausted := &ExhaustedError{DocumentID: doc.Ref.ID, DownloadURL: doc.Ref.SourceURL, Attempts: attempts}
	c.transition(Transition{State: StateExhausted, Err: exhausted})
	c.logger.Error("RendererChain", "All renderer variants failed", map[string]interface{}{"document": doc.Ref.ID, "error": exhausted})
	return nil, exhausted
}

func (c *Chain) transition(t Transition) {
	c.state = t.State
	if c.OnTransition != nil {
		c.OnTransition(t)
	}
}

// BuildStrategies maps configured variant names to strategies, skipping
// unknown names.
func BuildStrategies(order []string, embed *EmbedStrategy, pdfjs *PDFJSStrategy, native NativeStrategy) []Strategy {
	var out []Strategy
	for _, name := range order {
		switch Variant(name) {
		case VariantEmbed:
			out = append(out, embed)
		case VariantPDFJS:
			out = append(out, pdfjs)
		case VariantNative:
			out = append(out, native)
		}
	}
	return out
}
