package navigation

import (
	"compliance-navigator-be/pkg/citation"
	"compliance-navigator-be/pkg/renderer"
)

type ActionKind string

const (
	ActionSearch        ActionKind = "search"
	ActionPageJump      ActionKind = "page_jump"
	ActionClipboardHint ActionKind = "clipboard_hint"
)

// Action is what activating a citation does. It is only valid for the
// renderer generation it was resolved against.
type Action struct {
	Citation   citation.Citation `json:"citation"`
	Kind       ActionKind        `json:"kind"`
	Target     string            `json:"target"`
	Page       int               `json:"page,omitempty"`
	Generation uint64            `json:"generation"`
}

// Resolve binds a citation to the best action the active renderer supports:
// search when possible, a page jump when the index knows the clause, and a
// clipboard hint otherwise.
func Resolve(c citation.Citation, capability renderer.Capability, index Index, generation uint64) Action {
	action := Action{
		Citation:   c,
		Kind:       ActionClipboardHint,
		Target:     citation.Label(c.ClauseNumber),
		Generation: generation,
	}

	if capability.Has(renderer.CanSearch) {
		action.Kind = ActionSearch
		return action
	}
	if page, ok := index.Page(c.ClauseNumber); ok && capability.Has(renderer.CanJumpToPage) {
		action.Kind = ActionPageJump
		action.Page = page
	}
	return action
}

func ResolveAll(citations []citation.Citation, capability renderer.Capability, index Index, generation uint64) []Action {
	actions := make([]Action, len(citations))
	for i, c := range citations {
		actions[i] = Resolve(c, capability, index, generation)
	}
	return actions
}
