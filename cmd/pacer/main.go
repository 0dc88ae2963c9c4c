// Command pacer is the Pacer CLI client.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/GoCodeAlone/pacer/internal/version"
	"github.com/GoCodeAlone/pacer/update"
)

const defaultServer = "http://localhost:9090"

var titleCase = cases.Title(language.English)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// newRootCmd assembles the command tree. The client is configured from
// persistent flags before any subcommand runs.
func newRootCmd() *cobra.Command {
	cli := &Client{HTTPClient: &http.Client{Timeout: 15 * time.Second}}
	var serverURL string

	root := &cobra.Command{
		Use:          "pacer",
		Short:        "Pacer CLI: estimate work, track completions and plan the day",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.BaseURL = strings.TrimRight(serverURL, "/")
		},
	}
	root.PersistentFlags().StringVar(&serverURL, "server", envOr("PACER_SERVER", defaultServer), "pacer server URL (or $PACER_SERVER)")
	root.PersistentFlags().StringVar(&cli.Token, "token", os.Getenv("PACER_TOKEN"), "JWT auth token (or $PACER_TOKEN)")

	root.AddCommand(
		newVersionCmd(),
		newStatusCmd(cli),
		newLoginCmd(cli),
		newTasksCmd(cli),
		newTaskCmd(cli),
		newEstimateCmd(cli),
		newTodayCmd(cli),
		newPaceCmd(cli),
		newScheduleCmd(cli),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --- version / status / login ---

func newVersionCmd() *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pacer %s\n", version.Get())
			if !check {
				return nil
			}
			rel, err := update.New(version.Version).Check(cmd.Context())
			if err != nil {
				return fmt.Errorf("check for updates: %w", err)
			}
			if rel == nil {
				fmt.Fprintln(out, "up to date")
				return nil
			}
			fmt.Fprintf(out, "%s is available", rel.Version)
			if rel.URL != "" {
				fmt.Fprintf(out, ": %s", rel.URL)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "check GitHub for a newer release")
	return cmd
}

func newStatusCmd(c *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show server status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var result map[string]any
			if err := c.get("/api/status", &result); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status:  %s\n", strVal(result["status"]))
			fmt.Fprintf(out, "version: %s\n", strVal(result["version"]))
			if up, ok := result["uptime_seconds"].(float64); ok {
				fmt.Fprintf(out, "uptime:  %s\n", time.Duration(up)*time.Second)
			}
			return nil
		},
	}
}

func newLoginCmd(c *Client) *cobra.Command {
	var username, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Obtain an auth token; export it as PACER_TOKEN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("PACER_PASSWORD")
			}
			var resp struct {
				Token     string    `json:"token"`
				ExpiresAt time.Time `json:"expires_at"`
			}
			body := map[string]string{"username": username, "password": password}
			if err := c.send(http.MethodPost, "/api/auth/login", body, &resp); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Token)
			fmt.Fprintf(cmd.ErrOrStderr(), "token expires %s\n", resp.ExpiresAt.Local().Format(time.RFC1123))
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "user", "u", "admin", "username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "password (or $PACER_PASSWORD)")
	return cmd
}

// Client holds HTTP client state for CLI commands.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// get performs a GET and decodes JSON into v.
func (c *Client) get(path string, v any) error {
	return c.do(http.MethodGet, path, nil, "", v)
}

// send encodes body as JSON and decodes the response into v (may be nil).
func (c *Client) send(method, path string, body, v any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	return c.do(method, path, r, "application/json", v)
}

func (c *Client) do(method, path string, body io.Reader, contentType string, v any) error {
	req, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, errorMessage(b))
	}
	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// errorMessage extracts the error field of a JSON error body.
func errorMessage(b []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(b))
}

// --- helpers ---

func strVal(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}

func label(s string) string {
	return titleCase.String(strings.ReplaceAll(s, "_", " "))
}
