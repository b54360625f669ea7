package cmd

import (
	"context"
	"fmt"
	"strings"

	"charm.land/fantasy"
	"github.com/spf13/cobra"

	"districtfinder/internal/agent"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about districts and schools using Claude AI via Fantasy",
	Long: `Ask a natural language question and get an AI-powered answer. The agent
can search districts by name and list the schools in a district.

Requires ANTHROPIC_API_KEY (or DISTRICTFINDER_ANTHROPIC_API_KEY) to be set.

Example:
  districtfinder ask "How many schools are in Lincoln Unified?"
  districtfinder ask "Which districts named Washington are in Ohio?"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		question := strings.Join(args, " ")

		cfg, err := loadConfig(cmd)
		if err != nil {
			HandleError(err, "Failed to load configuration")
		}
		if cfg.AnthropicAPIKey == "" {
			HandleError(fmt.Errorf("ANTHROPIC_API_KEY environment variable not set"), "Missing API key")
		}

		svc, cleanup, err := InitService(cfg)
		if err != nil {
			HandleError(err, "Failed to initialize lookup service")
		}
		defer cleanup()

		ctx := context.Background()

		fantasyAgent, err := agent.NewAskAgent(
			ctx,
			agent.WithAPIKey(cfg.AnthropicAPIKey),
			agent.WithModel(cfg.Model),
			agent.WithService(svc),
		)
		if err != nil {
			HandleError(err, "Failed to create agent")
		}

		result, err := fantasyAgent.Generate(ctx, fantasy.AgentCall{Prompt: question})
		if err != nil {
			HandleError(err, "Failed to generate response")
		}

		fmt.Println(result.Response.Content.Text())
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
