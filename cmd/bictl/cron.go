package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/beexponential/insights/internal/schedule"
)

func newCronCmd() *cobra.Command {
	var (
		typ      string
		at       string
		interval int
		dow, dom int
		count    int
	)
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Translate a sync schedule to cron and show the next runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			s := schedule.Schedule{Type: schedule.Type(typ), Time: at}
			if cmd.Flags().Changed("interval") {
				s.Interval = &interval
			}
			if cmd.Flags().Changed("day-of-week") {
				s.DayOfWeek = &dow
			}
			if cmd.Flags().Changed("day-of-month") {
				s.DayOfMonth = &dom
			}
			s = s.WithType(s.Type)
			if err := s.Validate(); err != nil {
				return err
			}
			expr := s.ToCron()
			next := make([]time.Time, 0, count)
			t := time.Now().UTC()
			for i := 0; i < count; i++ {
				n, err := schedule.Next(expr, t)
				if err != nil {
					return err
				}
				next = append(next, n)
				t = n
			}
			if jsonOutput(cmd) {
				return printJSON(cmd.OutOrStdout(), map[string]any{"schedule": s, "cron": expr, "next": next})
			}
			fmt.Fprintln(cmd.OutOrStdout(), expr)
			rows := make([][]string, 0, len(next))
			for i, n := range next {
				rows = append(rows, []string{fmt.Sprint(i + 1), n.Format(time.RFC3339)})
			}
			printTable(cmd.OutOrStdout(), []string{"#", "Next run (UTC)"}, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", string(schedule.TypeDaily), "interval|daily|weekly|monthly")
	cmd.Flags().StringVar(&at, "time", "", "time of day as HH:mm")
	cmd.Flags().IntVar(&interval, "interval", schedule.DefaultInterval, "minutes between runs for interval schedules")
	cmd.Flags().IntVar(&dow, "day-of-week", schedule.DefaultDayOfWeek, "0 (Sunday) to 6")
	cmd.Flags().IntVar(&dom, "day-of-month", schedule.DefaultDayOfMonth, "1 to 31")
	cmd.Flags().IntVar(&count, "count", 5, "number of upcoming runs to show")
	return cmd
}
