package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/alitalabs/alita/agent/auditlog"
	contractx "github.com/alitalabs/alita/agent/contract"
	"github.com/alitalabs/alita/agent/index"
	intentx "github.com/alitalabs/alita/agent/intent"
	"github.com/alitalabs/alita/agent/llm"
	"github.com/alitalabs/alita/agent/orchestrator"
	"github.com/alitalabs/alita/agent/prompt"
	"github.com/alitalabs/alita/agent/store"
	"github.com/alitalabs/alita/agent/tool"
	configx "github.com/alitalabs/alita/pkg/config"
	_ "github.com/alitalabs/alita/pkg/logger/autoload"
	openrouterx "github.com/alitalabs/alita/pkg/openrouter"
)

type AppConfig struct {
	CustomerID       string `envconfig:"CUSTOMER_ID" split_words:"true" required:"true"`
	DataDir          string `envconfig:"DATA_DIR" split_words:"true" default:"data"`
	ActionLogPath    string `envconfig:"ACTION_LOG_PATH" split_words:"true" default:"data/action_log.jsonl"`
	MaxHistoryTokens int    `envconfig:"MAX_HISTORY_TOKENS" split_words:"true" default:"1500"`

	// OrderStoreBackend selects where action validation reads order records
	// from: "json" (the local order index) or "postgres".
	OrderStoreBackend string `envconfig:"ORDER_STORE_BACKEND" split_words:"true" default:"json"`
	PostgresDSN       string `envconfig:"POSTGRES_DSN" split_words:"true"`
}

func main() {
	ctx := context.Background()

	appCfg := configx.MustNew[AppConfig]("ALITA")

	llmCfg := configx.MustNew[llm.Config]("OPENROUTER")
	if err := llmCfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid llm config")
	}
	if err := openrouterx.CheckAccess(ctx, llmCfg.OpenRouterFor(llm.RoleRouter)); err != nil {
		log.Fatal().Err(err).Msg("openrouter access check failed")
	}

	indexes, err := index.LoadSet(appCfg.DataDir)
	if err != nil {
		log.Fatal().Err(err).Str("data_dir", appCfg.DataDir).Msg("load indexes")
	}

	audit, err := auditlog.New(appCfg.ActionLogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", appCfg.ActionLogPath).Msg("open action log")
	}
	defer audit.Close()

	var orderStore contractx.OrderStore = indexes.Orders
	if appCfg.OrderStoreBackend == "postgres" {
		pg, err := store.NewPostgresOrderStore(store.PostgresConfig{DSN: appCfg.PostgresDSN})
		if err != nil {
			log.Fatal().Err(err).Msg("open postgres order store")
		}
		defer pg.Close()
		orderStore = pg
	}

	gateway, err := tool.NewGateway(tool.Deps{
		Catalog: indexes.Catalog,
		FAQ:     indexes.FAQ,
		Policy:  indexes.Policy,
		Orders:  indexes.Orders,
		Store:   orderStore,
		Audit:   audit,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build tool gateway")
	}

	prompts := prompt.LoadPromptSet()

	routerModelCfg := llmCfg.OpenRouterFor(llm.RoleRouter)
	routerModel, err := routerModelCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("build router model")
	}
	router, err := intentx.NewRouter(ctx, routerModel, prompts.Router, llmCfg.Timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("build intent router")
	}

	responderModelCfg := llmCfg.OpenRouterFor(llm.RoleResponder)
	responderModel, err := responderModelCfg.New(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("build responder model")
	}
	responder, err := llm.NewChat(responderModel, llmCfg.Timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("build responder")
	}

	agent, err := orchestrator.New(router, responder, gateway, orchestrator.Config{
		CustomerID:   appCfg.CustomerID,
		SystemPrompt: prompts.Chat,
		TokenBudget:  appCfg.MaxHistoryTokens,
		Categories:   indexes.Catalog.Categories(5),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build orchestrator")
	}

	fmt.Println("Alita support agent ready. Type 'quit' or 'exit' to leave.")
	runLoop(ctx, agent)
}

func runLoop(ctx context.Context, agent *orchestrator.Orchestrator) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := scanner.Text()
		if orchestrator.IsQuit(line) {
			fmt.Println("Goodbye!")
			return
		}
		fmt.Println(agent.HandleTurn(ctx, line))
	}
	if err := scanner.Err(); err != nil {
		log.Error().Err(err).Msg("read input")
	}
}
