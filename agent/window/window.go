// Package window trims conversation history to a token budget before every
// model call.
package window

import contractx "github.com/alitalabs/alita/agent/contract"

// charsPerToken is the fixed cost heuristic: one token per four characters.
// An approximation by contract, not an exact tokenizer.
const charsPerToken = 4

// EstimateTokens returns the heuristic token cost of one turn.
func EstimateTokens(turn contractx.Turn) int {
	return len(turn.Text) / charsPerToken
}

// Build appends the new user turn and, when present, the injected context
// turn to history, then evicts the oldest non-system turns one at a time
// until the estimated cost fits the budget. System turns, including the
// just-injected context turn, are never evicted.
//
// When useMemory is false the window collapses to the system turns plus the
// latest user turn (and the context turn when present).
func Build(
	history []contractx.Turn,
	newTurn contractx.Turn,
	contextTurn *contractx.Turn,
	budget int,
	useMemory bool,
) []contractx.Turn {
	full := make([]contractx.Turn, 0, len(history)+2)
	full = append(full, history...)
	full = append(full, newTurn)
	if contextTurn != nil {
		full = append(full, *contextTurn)
	}

	if !useMemory {
		collapsed := make([]contractx.Turn, 0, 3)
		for _, turn := range full {
			if turn.Role == contractx.RoleSystem {
				collapsed = append(collapsed, turn)
			}
		}
		collapsed = append(collapsed, newTurn)
		return collapsed
	}

	total := 0
	for _, turn := range full {
		total += EstimateTokens(turn)
	}

	for total > budget {
		evicted := false
		for i, turn := range full {
			if turn.Role == contractx.RoleSystem {
				continue
			}
			total -= EstimateTokens(turn)
			full = append(full[:i], full[i+1:]...)
			evicted = true
			break
		}
		if !evicted {
			break
		}
	}
	return full
}
