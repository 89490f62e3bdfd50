package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/BlogPulse/internal/database"
)

var calendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Manage the editorial calendar",
}

var (
	calFrom   string
	calTo     string
	calStatus string
	calNotes  string
)

var calendarListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, d := range []string{calFrom, calTo} {
			if d != "" && !database.ValidDate(d) {
				return fmt.Errorf("invalid date %q (want YYYY-MM-DD)", d)
			}
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := db.ListCalendar(owner(), calFrom, calTo)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(entries)
		}
		if len(entries) == 0 {
			fmt.Println(mutedStyle.Render("Nothing scheduled yet."))
			return nil
		}
		fmt.Println(titleStyle.Render("Editorial calendar"))
		for _, e := range entries {
			fmt.Printf("  %s  %-9s #%-6d %s\n", database.FormatDateDisplay(e.ScheduledDate), e.Status, e.PostID, e.Title)
			if e.Notes != nil && *e.Notes != "" {
				fmt.Printf("      %s\n", mutedStyle.Render(*e.Notes))
			}
		}
		return nil
	},
}

var calendarScheduleCmd = &cobra.Command{
	Use:   "schedule <post-id> <date> <title>",
	Short: "Schedule a post, or move it when already scheduled",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid post id %q", args[0])
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		e := database.CalendarEntry{
			Owner:         owner(),
			PostID:        postID,
			ScheduledDate: args[1],
			Title:         args[2],
			Status:        calStatus,
		}
		if calNotes != "" {
			e.Notes = &calNotes
		}
		saved, err := db.UpsertCalendarEntry(e)
		if err != nil {
			return err
		}
		fmt.Printf("%s post %d on %s (%s)\n", okStyle.Render("Scheduled"), saved.PostID, database.FormatDateDisplay(saved.ScheduledDate), saved.Status)
		return nil
	},
}

var calendarRemoveCmd = &cobra.Command{
	Use:   "remove <post-id>",
	Short: "Remove a post from the calendar",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		postID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid post id %q", args[0])
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ok, err := db.DeleteCalendarEntry(owner(), postID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("post %d is not on the calendar", postID)
		}
		fmt.Printf("Removed post %d\n", postID)
		return nil
	},
}

func init() {
	calendarCmd.PersistentFlags().StringVar(&ownerFlag, "owner", "", "Owner identity (default server.owner or $USER)")

	calendarListCmd.Flags().StringVar(&calFrom, "from", "", "First date (YYYY-MM-DD)")
	calendarListCmd.Flags().StringVar(&calTo, "to", "", "Last date (YYYY-MM-DD)")
	calendarListCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON")

	calendarScheduleCmd.Flags().StringVar(&calStatus, "status", database.StatusIdea, "idea, draft, scheduled or published")
	calendarScheduleCmd.Flags().StringVar(&calNotes, "notes", "", "Free-form notes")

	calendarCmd.AddCommand(calendarListCmd, calendarScheduleCmd, calendarRemoveCmd)
}
