package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/BlogPulse/internal/database"
	"github.com/TobiSchelling/BlogPulse/internal/keywords"
	"github.com/TobiSchelling/BlogPulse/internal/pipeline"
	"github.com/TobiSchelling/BlogPulse/internal/stats"
)

// --- ingest command ---

var (
	dryRun     bool
	withReport bool
	reportDate string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch all posts, compute statistics and record the run",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if reportDate != "" && !database.ValidDate(reportDate) {
			return fmt.Errorf("invalid --date %q (want YYYY-MM-DD)", reportDate)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		var result *pipeline.Result
		if dryRun {
			result = pipeline.New(cfg, db, pipeline.NewWordPressClient(cfg), nil).DryRun()
		} else {
			pipe := pipeline.New(cfg, db, pipeline.NewWordPressClient(cfg), nil)
			if withReport {
				pipe = pipeline.FromConfig(ctx, cfg, db)
			}
			result = pipe.Run(ctx, pipeline.Options{Date: reportDate, Report: withReport})
		}

		for i, step := range result.Steps {
			fmt.Printf("\n%s\n", headerStyle.Render(fmt.Sprintf("Step %d/%d: %s", i+1, len(result.Steps), step.Name)))
			if step.Err != nil {
				fmt.Printf("  %s\n", errorStyle.Render("Error: "+step.Err.Error()))
			} else {
				fmt.Printf("  %s\n", step.Summary)
			}
		}
		if err := result.Err(); err != nil {
			return err
		}

		if result.Dashboard != nil {
			printDashboard(*result.Dashboard)
		}
		if withReport && !dryRun {
			fmt.Println("\nReport stored. Run 'blogpulse serve' to view it.")
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	ingestCmd.Flags().BoolVar(&withReport, "report", false, "Compose and store the markdown report")
	ingestCmd.Flags().StringVar(&reportDate, "date", "", "Report date (YYYY-MM-DD, default today)")
}

func printDashboard(d stats.Dashboard) {
	lines := []string{
		fmt.Sprintf("Posts:              %d", d.PostCount),
		fmt.Sprintf("Categories:         %d", d.CategoryCount),
		fmt.Sprintf("Unique keywords:    %d", d.UniqueKeywords),
		fmt.Sprintf("Keyword diversity:  %d", d.KeywordDiversityIndex),
		fmt.Sprintf("Avg. words/post:    %d", d.AvgWordsPerPost),
		fmt.Sprintf("Content gap rate:   %s", gapStyle(d.ContentGapRate).Render(fmt.Sprintf("%d%%", d.ContentGapRate))),
		fmt.Sprintf("Last 30 days:       %d posts", d.PublicationTrend.Last30Days),
		fmt.Sprintf("Days 31-90:         %d posts", d.PublicationTrend.Days31To90),
		fmt.Sprintf("Growth rate:        %d%%", d.GrowthRate),
	}
	fmt.Println()
	fmt.Println(boxStyle.Render(strings.Join(lines, "\n")))
}

// --- keywords command ---

var (
	topN       int
	jsonOutput bool
)

var keywordsCmd = &cobra.Command{
	Use:   "keywords",
	Short: "Show the most frequent keywords of the blog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		data, _, dash, err := analyze(ctx)
		if err != nil {
			return err
		}
		top := keywords.Top(keywords.Count(data.Posts), topN)
		if jsonOutput {
			return printJSON(top)
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("Top %d keywords (%d unique, diversity %d)", len(top), dash.UniqueKeywords, dash.KeywordDiversityIndex)))
		for i, k := range top {
			fmt.Printf("%3d. %-24s %s\n", i+1, k.Keyword, mutedStyle.Render(fmt.Sprintf("%d", k.Count)))
		}
		return nil
	},
}

// --- treatments command ---

var treatmentsCmd = &cobra.Command{
	Use:   "treatments",
	Short: "Show treatment coverage and content gaps",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		_, _, dash, err := analyze(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{
				"treatments":       dash.Treatments,
				"gaps":             dash.Gaps,
				"content_gap_rate": dash.ContentGapRate,
			})
		}

		fmt.Println(titleStyle.Render("Treatment coverage"))
		for _, t := range dash.Treatments {
			line := fmt.Sprintf("  %-40s %3d posts", t.Treatment, t.Frequency)
			if t.Frequency < 2 {
				line = errorStyle.Render(line + "  gap")
			}
			fmt.Println(line)
		}
		fmt.Printf("\nContent gap rate: %s\n", gapStyle(dash.ContentGapRate).Render(fmt.Sprintf("%d%%", dash.ContentGapRate)))
		return nil
	},
}

func init() {
	keywordsCmd.Flags().IntVarP(&topN, "top", "n", stats.TopKeywordCount, "Number of keywords to show")
	for _, c := range []*cobra.Command{keywordsCmd, treatmentsCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
