package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/BlogPulse/internal/audit"
	"github.com/TobiSchelling/BlogPulse/internal/config"
	"github.com/TobiSchelling/BlogPulse/internal/pagespeed"
	"github.com/TobiSchelling/BlogPulse/internal/serp"
)

var ownerFlag string

// owner resolves the identity that scopes per-user data.
func owner() string {
	if ownerFlag != "" {
		return ownerFlag
	}
	if cfg.Server.Owner != "" {
		return cfg.Server.Owner
	}
	return os.Getenv("USER")
}

// --- audit command ---

var auditCmd = &cobra.Command{
	Use:   "audit [url]",
	Short: "Run on-page SEO checks against a URL",
	Long:  "Audit a page and store the result. Without a URL, list the stored analyses.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return listAnalyses()
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		var metrics audit.MetricsRunner
		if key := config.Env(cfg.Search.PageSpeedAPIKeyEnv); key != "" {
			client, err := pagespeed.NewClient(ctx, key)
			if err != nil {
				return err
			}
			metrics = client
		} else {
			log.Printf("%s not set, skipping Core Web Vitals", cfg.Search.PageSpeedAPIKeyEnv)
		}

		report, err := audit.NewAuditor(cfg.Audit.Timeout, metrics).WithStrategy(cfg.Audit.Strategy).Audit(ctx, args[0])
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.SavePageAnalysis(owner(), report.URL, report.Score, report); err != nil {
			return fmt.Errorf("saving analysis: %w", err)
		}

		if jsonOutput {
			return printJSON(report)
		}

		fmt.Println(titleStyle.Render(fmt.Sprintf("%s  (HTTP %d)", report.URL, report.Status)))
		for _, c := range report.Checks {
			mark := "PASS"
			if !c.Passed {
				mark = "FAIL"
			}
			fmt.Printf("  %s %-18s %3d\n", passStyle(c.Passed).Render(mark), c.Name, c.Score)
			if c.Err != "" {
				fmt.Printf("       %s\n", errorStyle.Render(c.Err))
			}
			for _, f := range c.Findings {
				fmt.Printf("       %s\n", mutedStyle.Render(f))
			}
		}
		fmt.Printf("\nOverall score: %s\n", passStyle(report.Score >= 50).Render(fmt.Sprintf("%d/100", report.Score)))
		return nil
	},
}

// --- rank command ---

var rankCmd = &cobra.Command{
	Use:   "rank [keyword]...",
	Short: "Look up the blog's Google position for keywords",
	Long:  "Check and store the position of each keyword. Without keywords, list the stored positions.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return listRanks()
		}
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		client, err := serp.NewClient(serp.Options{
			APIKey:   config.Env(cfg.Search.APIKeyEnv),
			Location: cfg.Search.Location,
		})
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var ranks []serp.Rank
		for _, kw := range args {
			kw = strings.TrimSpace(kw)
			if kw == "" {
				continue
			}
			r, err := client.Rank(ctx, kw, cfg.Site.BaseURL)
			if err != nil {
				return fmt.Errorf("ranking %q: %w", kw, err)
			}
			if err := db.UpsertKeywordRank(owner(), r.Keyword, r.Position, r.URL, r.Checked); err != nil {
				return fmt.Errorf("saving rank: %w", err)
			}
			ranks = append(ranks, r)
		}

		if jsonOutput {
			return printJSON(ranks)
		}
		fmt.Println(titleStyle.Render("Search positions"))
		for _, r := range ranks {
			if r.Position == 0 {
				fmt.Printf("  %-36s %s\n", r.Keyword, mutedStyle.Render("not ranked"))
				continue
			}
			fmt.Printf("  %-36s #%-3d %s\n", r.Keyword, r.Position, mutedStyle.Render(r.URL))
		}
		return nil
	},
}

func listAnalyses() error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	analyses, err := db.ListPageAnalyses(owner())
	if err != nil {
		return err
	}
	if len(analyses) == 0 {
		fmt.Println(mutedStyle.Render("No pages audited yet."))
		return nil
	}
	fmt.Println(titleStyle.Render("Audited pages"))
	for _, a := range analyses {
		when := ""
		if a.AnalyzedAt != nil {
			when = *a.AnalyzedAt
		}
		fmt.Printf("  %s %s %s\n", passStyle(a.Score >= 50).Render(fmt.Sprintf("%3d", a.Score)), a.URL, mutedStyle.Render(when))
	}
	return nil
}

func listRanks() error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ranks, err := db.ListKeywordRanks(owner())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(ranks)
	}
	if len(ranks) == 0 {
		fmt.Println(mutedStyle.Render("No keywords tracked yet."))
		return nil
	}
	fmt.Println(titleStyle.Render("Tracked keywords"))
	for _, r := range ranks {
		pos := mutedStyle.Render("not ranked")
		if r.Position > 0 {
			pos = fmt.Sprintf("#%d", r.Position)
		}
		fmt.Printf("  %-36s %s\n", r.Keyword, pos)
	}
	return nil
}

func init() {
	for _, c := range []*cobra.Command{auditCmd, rankCmd} {
		c.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")
		c.Flags().StringVar(&ownerFlag, "owner", "", "Owner identity (default server.owner or $USER)")
	}
}
