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

// Command claimsight is the CLI for the ClaimSight insurance analytics agent.
//
// Usage:
//
//	claimsight generate --db-path insurance_data.db --customers 1000
//	claimsight serve --port 5050
//	claimsight chat --mode demo
//	claimsight ask --url http://localhost:5050 "How many customers do we have?"
package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	claimsight "github.com/kadirpekel/claimsight"
	"github.com/kadirpekel/claimsight/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version  VersionCmd  `cmd:"" help:"Show version information."`
	Generate GenerateCmd `cmd:"" help:"Generate sample insurance data."`
	Serve    ServeCmd    `cmd:"" help:"Start the A2A agent server."`
	Chat     ChatCmd     `cmd:"" help:"Chat with the agent locally (no server)."`
	Ask      AskCmd      `cmd:"" help:"Ask a question to a running agent server."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple or verbose)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Println(claimsight.GetVersion())
	return nil
}

func main() {
	_ = config.LoadEnvFiles()

	cli := CLI{}
	ctx := kong.Parse(&cli,
		kong.Name("claimsight"),
		kong.Description("ClaimSight - insurance analytics agent over A2A"),
		kong.UsageOnError(),
	)

	cleanup, err := initLoggerFromCLI(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
