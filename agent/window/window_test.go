package window

import (
	"strings"
	"testing"
	"time"

	contractx "github.com/alitalabs/alita/agent/contract"
)

func turn(role contractx.Role, text string) contractx.Turn {
	return contractx.Turn{Role: role, Text: text, Timestamp: time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func cost(turns []contractx.Turn) int {
	total := 0
	for _, t := range turns {
		total += EstimateTokens(t)
	}
	return total
}

func TestBuildRespectsBudget(t *testing.T) {
	t.Parallel()

	history := []contractx.Turn{
		turn(contractx.RoleSystem, strings.Repeat("s", 80)),
		turn(contractx.RoleUser, strings.Repeat("a", 200)),
		turn(contractx.RoleAssistant, strings.Repeat("b", 200)),
		turn(contractx.RoleUser, strings.Repeat("c", 200)),
		turn(contractx.RoleAssistant, strings.Repeat("d", 200)),
	}
	newTurn := turn(contractx.RoleUser, strings.Repeat("e", 100))

	for _, budget := range []int{10, 50, 100, 1000} {
		out := Build(history, newTurn, nil, budget, true)

		nonSystem := 0
		for _, tr := range out {
			if tr.Role != contractx.RoleSystem {
				nonSystem += EstimateTokens(tr)
			}
		}
		systemCost := cost(out) - nonSystem
		if cost(out) > budget && nonSystem > 0 {
			t.Fatalf("budget %d exceeded with evictable turns left: total=%d system=%d", budget, cost(out), systemCost)
		}
	}
}

func TestBuildEvictsOldestFirst(t *testing.T) {
	t.Parallel()

	history := []contractx.Turn{
		turn(contractx.RoleUser, strings.Repeat("a", 400)),
		turn(contractx.RoleAssistant, strings.Repeat("b", 400)),
		turn(contractx.RoleUser, strings.Repeat("c", 400)),
	}
	newTurn := turn(contractx.RoleUser, strings.Repeat("e", 400))

	out := Build(history, newTurn, nil, 200, true)

	if len(out) == 0 {
		t.Fatal("expected at least the newest turn")
	}
	for _, tr := range out {
		if strings.HasPrefix(tr.Text, "a") {
			t.Fatal("oldest turn should be the first evicted")
		}
	}
	last := out[len(out)-1]
	if !strings.HasPrefix(last.Text, "e") {
		t.Fatalf("newest turn must survive longest, got %q...", last.Text[:1])
	}
}

func TestBuildNeverEvictsSystemTurns(t *testing.T) {
	t.Parallel()

	system := turn(contractx.RoleSystem, strings.Repeat("s", 800))
	history := []contractx.Turn{
		system,
		turn(contractx.RoleUser, strings.Repeat("a", 400)),
	}
	newTurn := turn(contractx.RoleUser, strings.Repeat("e", 400))
	contextTurn := turn(contractx.RoleSystem, strings.Repeat("x", 800))

	out := Build(history, newTurn, &contextTurn, 10, true)

	var systems int
	for _, tr := range out {
		if tr.Role == contractx.RoleSystem {
			systems++
		}
	}
	if systems != 2 {
		t.Fatalf("expected both system turns pinned, got %d", systems)
	}
}

func TestBuildWithoutMemoryCollapses(t *testing.T) {
	t.Parallel()

	system := turn(contractx.RoleSystem, "persona")
	history := []contractx.Turn{
		system,
		turn(contractx.RoleUser, "earlier question"),
		turn(contractx.RoleAssistant, "earlier answer"),
	}
	newTurn := turn(contractx.RoleUser, "fresh question")

	out := Build(history, newTurn, nil, 1000, false)

	if len(out) != 2 {
		t.Fatalf("expected system + latest user turn, got %d turns", len(out))
	}
	if out[0].Role != contractx.RoleSystem || out[1].Text != "fresh question" {
		t.Fatalf("unexpected collapsed window: %#v", out)
	}
}

func TestEstimateTokens(t *testing.T) {
	t.Parallel()

	if got := EstimateTokens(turn(contractx.RoleUser, strings.Repeat("x", 40))); got != 10 {
		t.Fatalf("EstimateTokens = %d, want 10", got)
	}
}
