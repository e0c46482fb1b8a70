package prompt

import (
	"fmt"

	"chatd/pkg/types"
)

// BudgetError reports a context budget too small to hold even the floor of
// system prompt plus the triggering user message. This is a configuration
// problem, not a runtime condition, and must not be truncated around.
type BudgetError struct {
	Budget int
	Needed int
}

func (e BudgetError) Error() string {
	return fmt.Sprintf("context budget %d cannot fit system prompt and newest user message (need %d)", e.Budget, e.Needed)
}

// IsBudgetError reports whether err is a BudgetError.
func IsBudgetError(err error) bool {
	_, ok := err.(BudgetError)
	return ok
}

// Assemble converts the full ordered history of a conversation into the
// prompt context, bounded by budget (measured in characters of message
// content). The system prompt always comes first, then the most recent
// messages that fit, oldest dropped first, original order preserved. The
// newest message (the triggering user turn) is always included.
func Assemble(history []types.Message, budget int) ([]ChatMessage, error) {
	if len(history) == 0 {
		return nil, fmt.Errorf("assemble: empty history")
	}

	var system *ChatMessage
	rest := make([]ChatMessage, 0, len(history))
	for i, m := range history {
		cm := FromStored(m)
		if system == nil && cm.Role == RoleSystem && i == 0 {
			s := cm
			system = &s
			continue
		}
		rest = append(rest, cm)
	}
	if len(rest) == 0 {
		return nil, fmt.Errorf("assemble: history holds no user messages")
	}

	newest := rest[len(rest)-1]
	floor := len(newest.Content)
	if system != nil {
		floor += len(system.Content)
	}
	if floor > budget {
		return nil, BudgetError{Budget: budget, Needed: floor}
	}

	// Walk backwards from the newest message, taking as much recent history
	// as the budget allows.
	used := floor
	start := len(rest) - 1
	for i := len(rest) - 2; i >= 0; i-- {
		cost := len(rest[i].Content)
		if used+cost > budget {
			break
		}
		used += cost
		start = i
	}

	out := make([]ChatMessage, 0, len(rest)-start+1)
	if system != nil {
		out = append(out, *system)
	}
	out = append(out, rest[start:]...)
	return out, nil
}
