package estimate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/GoCodeAlone/pacer/provider"
	"github.com/GoCodeAlone/pacer/task"
)

// ErrNoJSON is returned when a model reply carries no JSON object.
var ErrNoJSON = errors.New("no JSON object in reply")

const systemPrompt = "You are an expert project manager and time estimation specialist. " +
	"Analyze tasks and provide accurate time estimates and complexity assessments. " +
	"Respond with a single JSON object and nothing else."

// ProviderSuggester asks a chat provider for a structured estimate.
type ProviderSuggester struct {
	provider provider.Provider
	workday  string
	now      func() time.Time
}

// NewProviderSuggester wraps p. workday describes the working window in
// the prompt, e.g. "08:00-16:00".
func NewProviderSuggester(p provider.Provider, workday string) *ProviderSuggester {
	if workday == "" {
		workday = "08:00-16:00"
	}
	return &ProviderSuggester{provider: p, workday: workday, now: time.Now}
}

type suggestionReply struct {
	EstimatedHours float64  `json:"estimated_hours"`
	Complexity     string   `json:"complexity"`
	SuggestedTags  []string `json:"suggested_tags"`
	Breakdown      string   `json:"breakdown"`
}

// Suggest sends the task to the provider and parses the JSON reply.
func (s *ProviderSuggester) Suggest(ctx context.Context, req Request) (*Suggestion, error) {
	resp, err := s.provider.Chat(ctx, []provider.Message{
		{Role: provider.RoleSystem, Content: systemPrompt},
		{Role: provider.RoleUser, Content: s.prompt(req)},
	})
	if err != nil {
		return nil, fmt.Errorf("%s suggest: %w", s.provider.Name(), err)
	}

	reply, err := parseReply(resp.Content)
	if err != nil {
		return nil, fmt.Errorf("%s suggest: %w", s.provider.Name(), err)
	}
	return &Suggestion{
		Hours:      reply.EstimatedHours,
		Complexity: task.Complexity(strings.ToLower(strings.TrimSpace(reply.Complexity))),
		Tags:       reply.SuggestedTags,
		Rationale:  reply.Breakdown,
	}, nil
}

func (s *ProviderSuggester) prompt(req Request) string {
	var b strings.Builder
	b.WriteString("Analyze this task and reply with JSON of the form\n")
	b.WriteString(`{"estimated_hours": <number>, "complexity": "small|medium|large", ` +
		`"suggested_tags": ["tag"], "breakdown": "<one sentence explaining the estimate>"}`)
	b.WriteString("\n\nTask details:\n")
	fmt.Fprintf(&b, "- Title: %s\n", req.Title)
	if req.Description != "" {
		fmt.Fprintf(&b, "- Description: %s\n", req.Description)
	}
	if !req.Deadline.IsZero() {
		days := int(math.Floor(req.Deadline.Sub(s.now()).Hours() / 24))
		fmt.Fprintf(&b, "- Deadline: %s (in %d days)\n", req.Deadline.Format(time.RFC3339), days)
	}
	b.WriteString("\nConsider a sustainable working pace, buffer for unexpected issues, ")
	fmt.Fprintf(&b, "and a working day of %s with breaks and teaching commitments.\n", s.workday)
	return b.String()
}

// parseReply extracts the object between the first '{' and the last '}'.
func parseReply(content string) (*suggestionReply, error) {
	start := strings.IndexByte(content, '{')
	end := strings.LastIndexByte(content, '}')
	if start < 0 || end < start {
		return nil, ErrNoJSON
	}
	var reply suggestionReply
	if err := json.Unmarshal([]byte(content[start:end+1]), &reply); err != nil {
		return nil, fmt.Errorf("decode reply: %w", err)
	}
	return &reply, nil
}
