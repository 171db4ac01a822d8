package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/data4good/owl/internal/api"
	"github.com/data4good/owl/internal/gemini"
	"github.com/data4good/owl/internal/pipeline"
	"github.com/data4good/owl/internal/storage"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a question about humanitarian reports",
	Long: `Ask a question about humanitarian reports.

Examples:
  owl ask "What is the flood response in Sudan?"
  owl ask --k 3 --model gemini-2.5-pro "How many people were displaced?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return fmt.Errorf("a non-empty question is required")
		}

		k, _ := cmd.Flags().GetInt("k")
		model, _ := cmd.Flags().GetString("model")
		temperature, _ := cmd.Flags().GetFloat64("temperature")
		contextLimit, _ := cmd.Flags().GetInt("context-limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		req := api.AskRequest{
			Question:     question,
			K:            k,
			Model:        model,
			ContextLimit: contextLimit,
		}
		if temperature >= 0 {
			req.Temperature = &temperature
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Retrieving similar documents and generating an answer...")
		resp, err := client.post(context.Background(), "/v1/ask", req)
		if err != nil {
			return err
		}

		var result api.AskResponse
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}

		renderOutcome(result)
		return nil
	},
}

func renderOutcome(result api.AskResponse) {
	switch result.State {
	case pipeline.StateAnswerReady:
		fmt.Fprintf(os.Stdout, "%s\n%s\n\n", colorize(colorBold, "Answer"), result.Answer)
		if len(result.Documents) > 0 {
			fmt.Fprintln(os.Stdout, colorize(colorBold, "Retrieved documents"))
			for i, d := range result.Documents {
				renderDocument(i+1, d)
			}
		}
		printSuccess("answered with %s (k=%d) in %dms", result.Model, result.K, result.DurationMs)
	case pipeline.StateRetrievalEmpty:
		printWarning("%s", result.Message)
	default:
		printError("%s", result.Message)
		if result.ErrorDetail != "" {
			fmt.Fprintln(os.Stderr, result.ErrorDetail)
		}
	}
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the available generation model tiers",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, m := range gemini.ModelOptions() {
			fmt.Fprintf(os.Stdout, "%-24s %s\n", m.ID, m.Label)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent question submissions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(context.Background(), fmt.Sprintf("/v1/history?limit=%d", limit))
		if err != nil {
			return err
		}

		var result struct {
			Submissions []storage.Submission `json:"submissions"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		if len(result.Submissions) == 0 {
			printWarning("no submissions recorded yet")
			return nil
		}

		for _, sub := range result.Submissions {
			fmt.Fprintf(os.Stdout, "%s  %-18s  %s\n",
				sub.CreatedAt.Local().Format("2006-01-02 15:04"), sub.State, sub.Question)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().Int("k", 0, "number of similar documents to retrieve (1-10, default from server)")
	askCmd.Flags().String("model", "", "generation model tier (see 'owl models')")
	askCmd.Flags().Float64("temperature", -1, "model temperature between 0.0 and 1.0 (default from server)")
	askCmd.Flags().Int("context-limit", 0, "context character budget (2000-50000, default from server)")
	askCmd.Flags().Bool("json", false, "print the raw JSON outcome")

	historyCmd.Flags().Int("limit", 20, "maximum submissions to show")
}
