package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/BlogPulse/internal/pipeline"
	"github.com/TobiSchelling/BlogPulse/internal/scheduler"
	"github.com/TobiSchelling/BlogPulse/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web dashboard",
	Long:  "Serve the dashboard, reports and calendar API. When schedule.refresh is set, the blog is re-ingested on that cron schedule.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Schedule.Refresh != "" {
			sched, err := scheduler.New(cfg.Schedule.Refresh, time.Local, func(ctx context.Context) error {
				return pipeline.FromConfig(ctx, cfg, db).Run(ctx, pipeline.Options{Report: true}).Err()
			})
			if err != nil {
				return err
			}
			sched.Start(ctx)
			defer sched.Stop()
		}

		fmt.Printf("BlogPulse running at http://localhost:%d\n", port)
		return server.Serve(ctx, db, server.Options{DefaultOwner: cfg.Server.Owner}, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (default server.port)")
}
