package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/router.txt
	routerRaw string

	//go:embed template/chat.txt
	chatRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Router string
	Chat   string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings. Safe to call
// concurrently; the embed is compile-time and trimming is cheap.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Router: strings.TrimSpace(routerRaw),
		Chat:   strings.TrimSpace(chatRaw),
	}
}
