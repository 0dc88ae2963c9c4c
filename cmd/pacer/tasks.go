package main

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/pacer/estimate"
	"github.com/GoCodeAlone/pacer/learning"
	"github.com/GoCodeAlone/pacer/task"
)

func newTasksCmd(c *Client) *cobra.Command {
	var status, tag string
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if tag != "" {
				q.Set("tag", tag)
			}
			path := "/api/tasks"
			if len(q) > 0 {
				path += "?" + q.Encode()
			}
			var tasks []task.Task
			if err := c.get(path, &tasks); err != nil {
				return err
			}
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "open, or comma-separated statuses")
	cmd.Flags().StringVar(&tag, "tag", "", "only tasks with this tag")
	return cmd
}

func printTasks(w io.Writer, tasks []task.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "no tasks")
		return
	}
	fmt.Fprintf(w, "%-36s %-30s %-12s %-8s %6s %-10s\n", "ID", "TITLE", "STATUS", "PRIORITY", "HOURS", "DEADLINE")
	fmt.Fprintln(w, strings.Repeat("-", 107))
	for _, t := range tasks {
		fmt.Fprintf(w, "%-36s %-30s %-12s %-8s %6.1f %-10s\n",
			t.ID,
			truncate(t.Title, 29),
			label(string(t.Status)),
			label(string(t.Priority)),
			t.EstimatedHours,
			t.Deadline.Local().Format("2006-01-02"),
		)
	}
}

func newTaskCmd(c *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Create, inspect and complete a task",
	}
	cmd.AddCommand(
		newTaskCreateCmd(c),
		newTaskShowCmd(c),
		newTaskStartCmd(c),
		newTaskProgressCmd(c),
		newTaskCompleteCmd(c),
		newTaskDeleteCmd(c),
	)
	return cmd
}

func newTaskCreateCmd(c *Client) *cobra.Command {
	var (
		deadline, priority, description string
		tags                            []string
	)
	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Create a task; the server estimates it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"title":       strings.Join(args, " "),
				"description": description,
				"deadline":    deadline,
				"priority":    priority,
				"tags":        tags,
			}
			var created struct {
				Task     task.Task       `json:"task"`
				Estimate estimate.Result `json:"estimate"`
			}
			if err := c.send(http.MethodPost, "/api/tasks", body, &created); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created task %s\n", created.Task.ID)
			printEstimate(out, created.Estimate)
			return nil
		},
	}
	cmd.Flags().StringVarP(&deadline, "deadline", "d", "", "deadline, YYYY-MM-DD or RFC 3339 (required)")
	cmd.Flags().StringVarP(&priority, "priority", "p", "medium", "low, medium or high")
	cmd.Flags().StringVar(&description, "desc", "", "description")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "tag (repeatable)")
	_ = cmd.MarkFlagRequired("deadline")
	return cmd
}

func printEstimate(w io.Writer, res estimate.Result) {
	fmt.Fprintf(w, "estimate: %.1fh (%s, %s)\n", res.Hours, label(string(res.Complexity)), res.Source)
	if res.PaceFactor != 0 && res.PaceFactor != 1 {
		fmt.Fprintf(w, "pace:     x%.2f applied to %.1fh\n", res.PaceFactor, res.BaseHours)
	}
	if len(res.Tags) > 0 {
		fmt.Fprintf(w, "tags:     %s\n", strings.Join(res.Tags, ", "))
	}
	if res.Rationale != "" {
		fmt.Fprintf(w, "why:      %s\n", res.Rationale)
	}
}

func newTaskShowCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var t task.Task
			if err := c.get("/api/tasks/"+url.PathEscape(args[0]), &t); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:        %s\n", t.ID)
			fmt.Fprintf(out, "title:     %s\n", t.Title)
			if t.Description != "" {
				fmt.Fprintf(out, "details:   %s\n", t.Description)
			}
			fmt.Fprintf(out, "status:    %s (%.0f%%)\n", label(string(t.Status)), t.Progress*100)
			fmt.Fprintf(out, "priority:  %s\n", label(string(t.Priority)))
			fmt.Fprintf(out, "deadline:  %s\n", t.Deadline.Local().Format(time.RFC1123))
			fmt.Fprintf(out, "estimate:  %.1fh (%s)\n", t.EstimatedHours, label(string(t.Complexity)))
			if t.ActualHours != nil {
				fmt.Fprintf(out, "actual:    %.1fh\n", *t.ActualHours)
			}
			if len(t.Tags) > 0 {
				fmt.Fprintf(out, "tags:      %s\n", strings.Join(t.Tags, ", "))
			}
			return nil
		},
	}
}

func newTaskStartCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "start <id>",
		Short: "Mark a task in progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]string{"status": string(task.StatusInProgress)}
			if err := c.send(http.MethodPatch, "/api/tasks/"+url.PathEscape(args[0]), body, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %s started\n", args[0])
			return nil
		},
	}
}

func newTaskProgressCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id> <percent>",
		Short: "Record how much of a task is done",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pct, err := strconv.ParseFloat(strings.TrimSuffix(args[1], "%"), 64)
			if err != nil || pct < 0 || pct > 100 {
				return fmt.Errorf("percent must be between 0 and 100")
			}
			body := map[string]float64{"progress": pct / 100}
			if err := c.send(http.MethodPatch, "/api/tasks/"+url.PathEscape(args[0]), body, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %s at %.0f%%\n", args[0], pct)
			return nil
		},
	}
}

func newTaskCompleteCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id> <actual-hours>",
		Short: "Complete a task and record the hours it took",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hours, err := strconv.ParseFloat(args[1], 64)
			if err != nil || hours <= 0 {
				return fmt.Errorf("actual hours must be a positive number")
			}
			var rec learning.Record
			body := map[string]float64{"actual_hours": hours}
			if err := c.send(http.MethodPost, "/api/tasks/"+url.PathEscape(args[0])+"/complete", body, &rec); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "completed %s: estimated %.1fh, took %.1fh (ratio %.2f)\n",
				rec.TaskID, rec.EstimatedHours, rec.ActualHours, rec.AccuracyRatio)
			return nil
		},
	}
}

func newTaskDeleteCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.send(http.MethodDelete, "/api/tasks/"+url.PathEscape(args[0]), nil, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "task %s deleted\n", args[0])
			return nil
		},
	}
}
