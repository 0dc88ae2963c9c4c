package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/pacer/calendar"
	"github.com/GoCodeAlone/pacer/estimate"
	"github.com/GoCodeAlone/pacer/learning"
	"github.com/GoCodeAlone/pacer/schedule"
	"github.com/GoCodeAlone/pacer/task"
)

func newEstimateCmd(c *Client) *cobra.Command {
	var description string
	var tags []string
	cmd := &cobra.Command{
		Use:   "estimate <title>",
		Short: "Estimate a task without creating it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := estimate.Request{Title: strings.Join(args, " "), Description: description, Tags: tags}
			var res estimate.Result
			if err := c.send(http.MethodPost, "/api/estimates", req, &res); err != nil {
				return err
			}
			printEstimate(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "desc", "", "description")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag (repeatable)")
	return cmd
}

func newTodayCmd(c *Client) *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "today",
		Short: "Show the recommended plan for a day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/recommendations/daily"
			if date != "" {
				path += "?date=" + date
			}
			var rec schedule.Recommendation
			if err := c.get(path, &rec); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s (%.1fh of work, %.1fh available, ratio %.2f)\n",
				rec.Date, label(string(rec.Workload)), rec.TotalHours, rec.AvailableHours, rec.Ratio)
			if rec.RequiredHours > rec.TotalHours {
				fmt.Fprintf(out, "deadlines need %.1fh today\n", rec.RequiredHours)
			}
			if len(rec.Timetable) == 0 {
				fmt.Fprintln(out, "nothing scheduled")
				return nil
			}
			fmt.Fprintln(out)
			for _, s := range rec.Timetable {
				fmt.Fprintf(out, "%s-%s  %-40s %s\n",
					s.Start.Format("15:04"), s.End.Format("15:04"),
					truncate(s.Title, 39), label(string(s.Priority)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to plan, YYYY-MM-DD (default today)")
	return cmd
}

func newPaceCmd(c *Client) *cobra.Command {
	var detail bool
	cmd := &cobra.Command{
		Use:   "pace",
		Short: "Show learned pace factors",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !detail {
				var p learning.Profile
				if err := c.get("/api/pace", &p); err != nil {
					return err
				}
				fmt.Fprintf(out, "overall: x%.2f from %d completions\n", p.Overall, p.Samples)
				printComplexityFactors(out, p.ByComplexity)
				printFactors(out, "tag", p.ByTag)
				return nil
			}
			var in learning.Insights
			if err := c.get("/api/analytics/learning", &in); err != nil {
				return err
			}
			fmt.Fprintf(out, "overall: x%.2f from %d completions\n", in.OverallFactor, in.TotalCompletions)
			printComplexityFactors(out, in.ComplexityFactors)
			printFactors(out, "tag", in.TagFactors)
			if len(in.AccuracyTrend) > 0 {
				fmt.Fprintln(out, "recent accuracy:")
				for _, p := range in.AccuracyTrend {
					fmt.Fprintf(out, "  %-40s %5.1fh est %5.1fh actual  %3.0f%%\n",
						truncate(p.Title, 39), p.Estimated, p.Actual, p.Accuracy*100)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&detail, "detail", false, "include the recent accuracy trend")
	return cmd
}

// printComplexityFactors lists classes from smallest to largest.
func printComplexityFactors(w io.Writer, factors map[task.Complexity]float64) {
	for _, c := range task.Complexities {
		if f, ok := factors[c]; ok {
			fmt.Fprintf(w, "  %-10s %-20s x%.2f\n", "complexity", c, f)
		}
	}
}

func printFactors(w io.Writer, kind string, factors map[string]float64) {
	keys := make([]string, 0, len(factors))
	for k := range factors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-10s %-20s x%.2f\n", kind, k, factors[k])
	}
}

func newScheduleCmd(c *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage fixed commitments",
	}
	cmd.AddCommand(newScheduleListCmd(c), newScheduleAddCmd(c), newScheduleImportCmd(c), newScheduleRemoveCmd(c))
	return cmd
}

func newScheduleListCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List commitments",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var list []calendar.Interval
			if err := c.get("/api/schedule", &list); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "no commitments")
				return nil
			}
			fmt.Fprintf(out, "%-36s %-12s %-11s %-10s %s\n", "ID", "WHEN", "TIME", "KIND", "LABEL")
			for _, iv := range list {
				when := "daily"
				switch {
				case iv.Date != "":
					when = iv.Date
				case iv.Weekday != "":
					when = label(iv.Weekday)
				}
				fmt.Fprintf(out, "%-36s %-12s %-11s %-10s %s\n",
					iv.ID, when, iv.Start.String()+"-"+iv.End.String(), iv.Kind, iv.Label)
			}
			return nil
		},
	}
}

func newScheduleAddCmd(c *Client) *cobra.Command {
	var iv calendar.Interval
	var start, end, kind string
	cmd := &cobra.Command{
		Use:   "add <label>",
		Short: "Add a commitment",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if iv.Start, err = calendar.ParseClock(start); err != nil {
				return err
			}
			if iv.End, err = calendar.ParseClock(end); err != nil {
				return err
			}
			iv.Label = strings.Join(args, " ")
			iv.Kind = calendar.Kind(kind)
			var saved calendar.Interval
			if err := c.send(http.MethodPost, "/api/schedule", iv, &saved); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added commitment %s\n", saved.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&iv.Weekday, "weekday", "", "repeat weekly on this day")
	cmd.Flags().StringVar(&iv.Date, "date", "", "one-off date, YYYY-MM-DD")
	cmd.Flags().StringVar(&start, "start", "", "start time, HH:MM (required)")
	cmd.Flags().StringVar(&end, "end", "", "end time, HH:MM (required)")
	cmd.Flags().StringVar(&kind, "kind", string(calendar.KindOther), "break, teaching, work or other")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func newScheduleImportCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Replace the teaching timetable from a YAML or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close() //nolint:errcheck
			var slots []calendar.Interval
			if err := c.do(http.MethodPost, "/api/schedule/teaching", f, "application/yaml", &slots); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d teaching slots\n", len(slots))
			return nil
		},
	}
}

func newScheduleRemoveCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Remove a commitment",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.send(http.MethodDelete, "/api/schedule/"+args[0], nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "commitment %s removed\n", args[0])
			return nil
		},
	}
}
