package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/BlogPulse/internal/advisor"
	"github.com/TobiSchelling/BlogPulse/internal/ingest"
	"github.com/TobiSchelling/BlogPulse/internal/llm"
	"github.com/TobiSchelling/BlogPulse/internal/pipeline"
	"github.com/TobiSchelling/BlogPulse/internal/stats"
)

// analyze ingests the configured blog without touching the database.
func analyze(ctx context.Context) (*ingest.BlogData, *ingest.Report, stats.Dashboard, error) {
	return pipeline.New(cfg, nil, pipeline.NewWordPressClient(cfg), nil).Analyze(ctx)
}

// --- recommend command ---

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Ask the AI for new post ideas that close content gaps",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		_, _, dash, err := analyze(ctx)
		if err != nil {
			return err
		}

		var recs advisor.Recommendations
		adv, err := pipeline.NewAdvisor(ctx, cfg)
		if err != nil {
			recs = advisor.Recommendations{
				Suggestions: advisor.FallbackSuggestions(dash.Gaps),
				Source:      advisor.SourceFallback,
				Reason:      err.Error(),
			}
		} else {
			recs, err = adv.Recommend(ctx, dash)
			if err != nil {
				return err
			}
		}

		if jsonOutput {
			return printJSON(recs)
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("Suggested posts (%s)", recs.Source)))
		if recs.Source == advisor.SourceFallback {
			fmt.Println(warnStyle.Render("AI unavailable, showing local suggestions: " + recs.Reason))
			fmt.Println()
		}
		if len(recs.Suggestions) == 0 {
			fmt.Println(mutedStyle.Render("No suggestions."))
			return nil
		}
		for i, s := range recs.Suggestions {
			fmt.Printf("%2d. %s %s\n", i+1, headerStyle.Render(s.Title), priorityStyle(s.Priority).Render("["+s.Priority+"]"))
			fmt.Printf("    keyword: %s", s.Keyword)
			if s.Treatment != "" {
				fmt.Printf("  treatment: %s", s.Treatment)
			}
			fmt.Println()
			if s.Rationale != "" {
				fmt.Printf("    %s\n", mutedStyle.Render(s.Rationale))
			}
		}
		return nil
	},
}

func init() {
	recommendCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")
}

// --- ask command ---

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Chat with the AI about the blog's statistics",
	Long:  "Ask a single question, or start an interactive session when no question is given. Answers are streamed.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		adv, err := pipeline.NewAdvisor(ctx, cfg)
		if err != nil {
			return err
		}
		_, _, dash, err := analyze(ctx)
		if err != nil {
			return err
		}

		history := []llm.Message{{Role: llm.RoleUser, Content: advisor.BuildPrompt(dash)}}

		if len(args) > 0 {
			_, err := askOnce(ctx, adv, append(history, llm.Message{Role: llm.RoleUser, Content: strings.Join(args, " ")}))
			return err
		}

		fmt.Println(mutedStyle.Render("Ask about your blog. An empty line or Ctrl-D ends the session."))
		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print(headerStyle.Render("> "))
			if !scanner.Scan() {
				break
			}
			q := strings.TrimSpace(scanner.Text())
			if q == "" {
				break
			}
			history = append(history, llm.Message{Role: llm.RoleUser, Content: q})
			answer, err := askOnce(ctx, adv, history)
			if err != nil {
				fmt.Println(errorStyle.Render("Error: " + err.Error()))
				// Drop the unanswered question so the next one starts clean.
				history = history[:len(history)-1]
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			history = append(history, llm.Message{Role: llm.RoleAssistant, Content: answer})
		}
		return scanner.Err()
	},
}

func askOnce(ctx context.Context, adv *advisor.Advisor, history []llm.Message) (string, error) {
	var b strings.Builder
	for chunk, err := range adv.AskStream(ctx, history) {
		if err != nil {
			fmt.Println()
			return "", err
		}
		fmt.Print(chunk)
		b.WriteString(chunk)
	}
	fmt.Println()
	return b.String(), nil
}
