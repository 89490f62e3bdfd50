package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/BlogPulse/internal/config"
	"github.com/TobiSchelling/BlogPulse/internal/database"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "blogpulse",
	Short:   "Content and SEO analytics for a WordPress blog",
	Long:    "BlogPulse fetches every post of a WordPress blog, measures keyword and treatment coverage, and asks an LLM for content recommendations.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		if err := config.LoadEnv(); err != nil {
			return err
		}
		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config %s:\n%w", path, err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(keywordsCmd)
	rootCmd.AddCommand(treatmentsCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(rankCmd)
	rootCmd.AddCommand(calendarCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("blogpulse", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/blogpulse/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to set your blog URL, treatments and AI provider.")
		fmt.Printf("API keys can go in %s\n", filepath.Join(config.ConfigDir(), ".env"))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println(titleStyle.Render("BlogPulse status"))
		fmt.Printf("Today: %s\n", database.GetToday())
		fmt.Printf("Site:  %s (%d treatments)\n", cfg.Site.BaseURL, len(cfg.Site.Treatments))
		if v, err := db.SchemaVersion(); err == nil {
			fmt.Printf("Store: %s (schema v%d)\n\n", cfg.DBPath(), v)
		}

		fmt.Println(headerStyle.Render("History"))
		fmt.Printf("  Ingestion runs: %d\n", stats.IngestionRuns)
		lastRun := stats.LastRunAt
		if lastRun == "" {
			lastRun = "never"
		}
		fmt.Printf("  Last run: %s\n", lastRun)
		fmt.Printf("  Reports: %d\n", stats.Reports)

		fmt.Println(headerStyle.Render("\nPlanning"))
		fmt.Printf("  Calendar entries: %d\n", stats.CalendarEntries)
		fmt.Printf("  Page analyses: %d\n", stats.PageAnalyses)
		fmt.Printf("  Tracked keywords: %d\n", stats.KeywordRanks)

		run, err := db.GetLatestRun(cfg.Site.BaseURL)
		if err != nil {
			return err
		}
		if run != nil {
			fmt.Println(headerStyle.Render("\nLatest run"))
			fmt.Printf("  Posts: %d  Keywords: %d  Gap rate: %s  Diversity: %d\n",
				run.Posts, run.Keywords, gapStyle(run.GapRate).Render(fmt.Sprintf("%d%%", run.GapRate)), run.Diversity)
		}
		return nil
	},
}

func openDB() (*database.DB, error) {
	return database.Open(cfg.DBPath())
}
