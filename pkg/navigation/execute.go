package navigation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"compliance-navigator-be/internal/pkg/logger"
	"compliance-navigator-be/pkg/renderer"
)

var (
	ErrStaleAction = errors.New("navigation action was resolved against an older renderer")
	ErrNoTarget    = errors.New("no renderer is mounted")
)

// Target is the part of a renderer navigation needs.
type Target interface {
	Search(ctx context.Context, term string) error
	JumpToPage(ctx context.Context, page int) error
}

type Clipboard interface {
	Copy(ctx context.Context, text string) error
}

type Notifier interface {
	Notify(ctx context.Context, message string, dismissAfter time.Duration) error
}

const DefaultHintDuration = 5 * time.Second

type Executor struct {
	Logger       logger.ILogger
	Clipboard    Clipboard
	Notifier     Notifier
	HintDuration time.Duration
	// Platform reports the client platform, e.g. a user agent. Optional.
	Platform func() string
}

// Execute performs action on target. generation is the current renderer
// generation; actions from any other generation are refused.
func (e *Executor) Execute(ctx context.Context, action Action, generation uint64, target Target) error {
	if action.Generation != generation {
		e.Logger.Error("Navigation", "Stale action executed", map[string]interface{}{
			"clause":            action.Citation.ClauseNumber,
			"action_generation": action.Generation,
			"generation":        generation,
			"error":             ErrStaleAction,
		})
		return ErrStaleAction
	}

	switch action.Kind {
	case ActionSearch:
		if target == nil {
			return ErrNoTarget
		}
		return target.Search(ctx, action.Target)
	case ActionPageJump:
		if target == nil {
			return ErrNoTarget
		}
		return target.JumpToPage(ctx, action.Page)
	case ActionClipboardHint:
		return e.hint(ctx, action.Target)
	default:
		return fmt.Errorf("unknown action kind %q", action.Kind)
	}
}

func (e *Executor) hint(ctx context.Context, text string) error {
	copied := true
	if e.Clipboard == nil {
		copied = false
	} else if err := e.Clipboard.Copy(ctx, text); err != nil {
		copied = false
		e.Logger.Warn("Navigation", "Clipboard copy failed", map[string]interface{}{"text": text, "error": err.Error()})
	}

	if e.Notifier == nil {
		return nil
	}
	platform := ""
	if e.Platform != nil {
		platform = e.Platform()
	}
	return e.Notifier.Notify(ctx, HintMessage(text, FindShortcut(platform), copied), e.hintDuration())
}

func (e *Executor) hintDuration() time.Duration {
	if e.HintDuration <= 0 {
		return DefaultHintDuration
	}
	return e.HintDuration
}

// FindShortcut returns the find-in-page key combination for a platform
// string such as a user agent or GOOS.
func FindShortcut(platform string) string {
	p := strings.ToLower(platform)
	for _, apple := range []string{"mac", "darwin", "iphone", "ipad"} {
		if strings.Contains(p, apple) {
			return "⌘F"
		}
	}
	return "Ctrl+F"
}

func HintMessage(text, shortcut string, copied bool) string {
	if copied {
		return fmt.Sprintf("Copied %q. Press %s in the document and paste to find it.", text, shortcut)
	}
	return fmt.Sprintf("Press %s in the document and search for %q.", shortcut, text)
}

// SurfaceHints delivers clipboard hints through the browser on a surface.
type SurfaceHints struct {
	Surface renderer.Surface
}

func (h SurfaceHints) Copy(ctx context.Context, text string) error {
	return h.Surface.Dispatch(ctx, renderer.Command{Type: renderer.CommandClipboard, Text: text})
}

func (h SurfaceHints) Notify(ctx context.Context, message string, dismissAfter time.Duration) error {
	return h.Surface.Dispatch(ctx, renderer.Command{
		Type:             renderer.CommandToast,
		Text:             message,
		DismissAfterMsec: dismissAfter.Milliseconds(),
	})
}
