// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/kadirpekel/claimsight/pkg/agent"
	"github.com/kadirpekel/claimsight/pkg/client"
	"github.com/kadirpekel/claimsight/pkg/config"
	"github.com/kadirpekel/claimsight/pkg/insurance"
	"github.com/kadirpekel/claimsight/pkg/model/openai"
	"github.com/kadirpekel/claimsight/pkg/observability"
	"github.com/kadirpekel/claimsight/pkg/server"
	"github.com/kadirpekel/claimsight/pkg/store"
	"github.com/kadirpekel/claimsight/pkg/tool"
	"github.com/kadirpekel/claimsight/pkg/tool/analytics"
)

// demoQuestions are run by `chat --mode demo`.
var demoQuestions = []string{
	"How many customers do we have?",
	"What is the breakdown of policies by type?",
	"What is the total claim amount for pending claims?",
	"What is the average premium by policy type?",
	"Which customers have more than 2 claims?",
}

// GenerateCmd generates sample insurance data.
type GenerateCmd struct {
	DBPath    string `name:"db-path" help:"SQLite database path." default:"insurance_data.db" type:"path"`
	Customers int    `help:"Number of customers to generate." default:"1000"`
	Seed      uint64 `help:"Random seed for reproducible data." default:"42"`
}

func (c *GenerateCmd) Run(cli *CLI) error {
	ctx := context.Background()

	fmt.Printf("Generating insurance data (customers=%d, seed=%d)...\n", c.Customers, c.Seed)

	ds := insurance.Generate(insurance.GeneratorConfig{
		Customers: c.Customers,
		Seed:      c.Seed,
	})

	st, err := store.Open(c.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	if err := st.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := st.LoadDataset(ctx, ds); err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}

	stats := ds.Stats()
	fmt.Printf("\nDatabase ready: %s\n", c.DBPath)
	fmt.Printf("  Customers: %d\n", stats.Customers)
	fmt.Printf("  Policies:  %d\n", stats.Policies)
	for _, pt := range insurance.PolicyTypes {
		if n := stats.PoliciesByType[pt]; n > 0 {
			fmt.Printf("    - %-7s %d\n", pt, n)
		}
	}
	fmt.Printf("  Claims:    %d\n", stats.Claims)
	for _, cs := range insurance.ClaimStatuses {
		if n := stats.ClaimsByStatus[cs]; n > 0 {
			fmt.Printf("    - %-11s %d\n", cs, n)
		}
	}
	fmt.Printf("  Total premiums: %.2f\n", stats.TotalPremium)
	fmt.Printf("  Total claimed:  %.2f\n", stats.TotalClaimValue)

	return nil
}

// ServeCmd starts the A2A agent server.
type ServeCmd struct {
	Host   string `help:"Host to bind." default:""`
	Port   int    `help:"Port to listen on." default:"0"`
	DBPath string `name:"db-path" help:"SQLite database path (overrides config)." type:"path"`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.DBPath != "" {
		cfg.Database.Path = c.DBPath
	}

	obs := observability.NewManager(cfg.Observability)
	if err := obs.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		if err := obs.Shutdown(context.Background()); err != nil {
			slog.Warn("Observability shutdown failed", "error", err)
		}
	}()

	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}

	a, cleanup, err := buildAgent(cfg, st)
	if err != nil {
		st.Close()
		return err
	}
	defer cleanup()

	srv := server.NewHTTPServer(cfg.Server, server.NewExecutor(a), st,
		server.WithObservability(obs))

	fmt.Printf("\nClaimSight agent server ready!\n")
	fmt.Printf("   Agent Card:  http://%s/.well-known/agent-card.json\n", srv.Address())
	fmt.Printf("   JSON-RPC:    http://%s/\n", srv.Address())
	fmt.Printf("   Health:      http://%s/health\n", srv.Address())
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("   Metrics:     http://%s/metrics\n", srv.Address())
	}
	if cfg.Observability.Tracing.Enabled {
		fmt.Printf("   Tracing:     otlp (%s)\n", cfg.Observability.Tracing.EndpointURL)
	}
	fmt.Printf("   Database:    %s\n", cfg.Database.Path)
	fmt.Println("\nPress Ctrl+C to stop")

	return srv.Start(ctx)
}

// ChatCmd runs the agent locally against the configured database.
type ChatCmd struct {
	Mode   string `help:"Chat mode (interactive or demo)." enum:"interactive,demo" default:"interactive"`
	DBPath string `name:"db-path" help:"SQLite database path (overrides config)." type:"path"`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg, err := config.Load(cli.Config)
	if err != nil {
		return err
	}
	if c.DBPath != "" {
		cfg.Database.Path = c.DBPath
	}

	// First run convenience: generate the dataset if the db file is missing.
	st, err := store.OpenOrGenerate(ctx, cfg.Database.Path, insurance.GeneratorConfig{})
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}

	a, cleanup, err := buildAgent(cfg, st)
	if err != nil {
		st.Close()
		return err
	}
	defer cleanup()

	if c.Mode == "demo" {
		return runDemo(ctx, a)
	}
	return runInteractive(ctx, a)
}

func runDemo(ctx context.Context, a *agent.Agent) error {
	for i, question := range demoQuestions {
		fmt.Printf("\n[%d/%d] Q: %s\n", i+1, len(demoQuestions), question)

		answer, err := a.Answer(ctx, question)
		if err != nil {
			return fmt.Errorf("demo question %d failed: %w", i+1, err)
		}
		fmt.Printf("A: %s\n", answer)
	}
	return nil
}

func runInteractive(ctx context.Context, a *agent.Agent) error {
	interactive := term.IsTerminal(int(os.Stdin.Fd()))
	if interactive {
		fmt.Println("ClaimSight analytics chat. Ask about customers, policies and claims.")
		fmt.Println("Type 'exit' or 'quit' to leave.")
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if interactive {
			fmt.Print("\nYou: ")
		}

		if !scanner.Scan() {
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		question := strings.TrimSpace(scanner.Text())
		switch question {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		answer, err := a.Answer(ctx, question)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Printf("Agent: %s\n", answer)
	}
}

// AskCmd sends a single question to a running agent server.
type AskCmd struct {
	URL      string `help:"Agent server base URL." default:"http://localhost:5050"`
	Card     bool   `help:"Print the agent card instead of asking."`
	Question string `arg:"" optional:"" help:"Question to ask."`
}

func (c *AskCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cl, err := client.New(ctx, c.URL)
	if err != nil {
		return err
	}
	defer cl.Close()

	if c.Card {
		card := cl.Card()
		fmt.Printf("Name:        %s\n", card.Name)
		fmt.Printf("Description: %s\n", card.Description)
		fmt.Printf("Version:     %s\n", card.Version)
		fmt.Printf("URL:         %s\n", card.URL)
		for _, skill := range card.Skills {
			fmt.Printf("Skill:       %s - %s\n", skill.ID, skill.Description)
		}
		return nil
	}

	if strings.TrimSpace(c.Question) == "" {
		return fmt.Errorf("a question is required (or use --card)")
	}

	answer, err := cl.Ask(ctx, c.Question)
	if err != nil {
		return err
	}
	fmt.Println(answer)
	return nil
}

// buildAgent wires the LLM and analytics tool around an open store. The
// returned cleanup closes both the store and the LLM.
func buildAgent(cfg *config.Config, st *store.Store) (*agent.Agent, func(), error) {
	llm, err := openai.New(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		Endpoint:    cfg.LLM.Endpoint,
		Deployment:  cfg.LLM.Deployment,
		APIVersion:  cfg.LLM.APIVersion,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Azure OpenAI client: %w", err)
	}

	analyticsTool, err := analytics.New(llm, st)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create analytics tool: %w", err)
	}

	a, err := agent.New(agent.Config{
		LLM:           llm,
		Tools:         []tool.CallableTool{analyticsTool},
		MaxIterations: cfg.Agent.MaxIterations,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create agent: %w", err)
	}

	cleanup := func() {
		if err := llm.Close(); err != nil {
			slog.Warn("LLM close failed", "error", err)
		}
		if err := st.Close(); err != nil {
			slog.Warn("Store close failed", "error", err)
		}
	}
	return a, cleanup, nil
}
