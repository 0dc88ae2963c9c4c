package estimate

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/GoCodeAlone/pacer/task"
)

// Tiers maps complexity classes to default hours.
type Tiers struct {
	Small  float64 `yaml:"small" json:"small"`
	Medium float64 `yaml:"medium" json:"medium"`
	Large  float64 `yaml:"large" json:"large"`
}

// DefaultTiers returns 1h, 4h and 16h.
func DefaultTiers() Tiers {
	return Tiers{Small: 1, Medium: 4, Large: 16}
}

func (t Tiers) withDefaults() Tiers {
	d := DefaultTiers()
	if t.Small <= 0 {
		t.Small = d.Small
	}
	if t.Medium <= 0 {
		t.Medium = d.Medium
	}
	if t.Large <= 0 {
		t.Large = d.Large
	}
	return t
}

// Hours returns the tier hours for c.
func (t Tiers) Hours(c task.Complexity) float64 {
	switch c {
	case task.ComplexitySmall:
		return t.Small
	case task.ComplexityLarge:
		return t.Large
	default:
		return t.Medium
	}
}

// Keyword classes, checked largest first. A word matches when it starts
// with the keyword, so "building" matches "build".
var complexityKeywords = []struct {
	complexity task.Complexity
	words      []string
}{
	{task.ComplexityLarge, []string{
		"project", "develop", "build", "create", "research", "analyze", "analyse",
		"comprehensive", "week", "team", "migrat", "semester", "curriculum", "thesis",
	}},
	{task.ComplexityMedium, []string{"review", "write", "prepare", "design", "plan", "organize", "organise"}},
	{task.ComplexitySmall, []string{"call", "email", "check", "update", "quick", "simple", "reply"}},
}

var tagKeywords = []struct {
	tag   string
	words []string
}{
	{"admin", []string{"admin", "paperwork", "expense", "invoice"}},
	{"meeting", []string{"meeting", "presentation", "present"}},
	{"research", []string{"research", "study", "studies"}},
	{"teaching", []string{"teach", "class", "lesson", "lecture", "grade", "grading"}},
}

const (
	smallWordLimit  = 8
	mediumWordLimit = 60
)

var folder = cases.Fold()

// foldText joins and case-folds the parts, then splits them into words.
func foldText(parts ...string) []string {
	text := folder.String(strings.Join(parts, " "))
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func matchAny(words, keywords []string) bool {
	for _, w := range words {
		for _, k := range keywords {
			if strings.HasPrefix(w, k) {
				return true
			}
		}
	}
	return false
}

// classifyWords picks a complexity from keywords, then from length.
func classifyWords(words []string) task.Complexity {
	for _, class := range complexityKeywords {
		if matchAny(words, class.words) {
			return class.complexity
		}
	}
	switch n := len(words); {
	case n <= smallWordLimit:
		return task.ComplexitySmall
	case n <= mediumWordLimit:
		return task.ComplexityMedium
	default:
		return task.ComplexityLarge
	}
}

// fallbackTag is given to tasks that end up with no tag at all.
const fallbackTag = "general"

func deriveTags(words []string) []string {
	var tags []string
	for _, tk := range tagKeywords {
		if matchAny(words, tk.words) {
			tags = append(tags, tk.tag)
		}
	}
	return tags
}

// ruleEstimate is the deterministic fallback estimate.
func ruleEstimate(req Request, tiers Tiers) Result {
	words := foldText(req.Title, req.Description)
	c := classifyWords(words)
	hours := tiers.Hours(c)
	return Result{
		BaseHours:  hours,
		Complexity: c,
		Tags:       deriveTags(words),
		Rationale:  fmt.Sprintf("Rule-based estimate: %s complexity task requiring %.1f hours.", c, hours),
		Source:     SourceRules,
	}
}
