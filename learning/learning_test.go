package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/GoCodeAlone/pacer/task"
)

func rec(id string, c task.Complexity, est, act float64, at time.Time, tags ...string) Record {
	return Record{
		TaskID: id, Title: "task " + id, Complexity: c, Tags: tags,
		EstimatedHours: est, ActualHours: act, AccuracyRatio: act / est, CompletedAt: at,
	}
}

func TestComputeProfile_Empty(t *testing.T) {
	p := ComputeProfile(nil)
	assert.Equal(t, 1.0, p.Overall)
	assert.Equal(t, 0, p.Samples)
	assert.Empty(t, p.ByComplexity)
	assert.Empty(t, p.ByTag)
	f, basis := p.FactorFor(task.ComplexityLarge, []string{"research"})
	assert.Equal(t, 1.0, f)
	assert.Equal(t, BasisOverall, basis)
}

func TestComputeProfile_MeanOfRatios(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	p := ComputeProfile([]Record{
		rec("a", task.ComplexitySmall, 1, 2, now, "admin"),       // 2.0
		rec("b", task.ComplexitySmall, 4, 2, now, "admin"),       // 0.5
		rec("c", task.ComplexityLarge, 10, 15, now, "research"), // 1.5
	})

	assert.InDelta(t, (2.0+0.5+1.5)/3, p.Overall, 1e-9)
	assert.Equal(t, 3, p.Samples)
	assert.InDelta(t, 1.25, p.ByComplexity[task.ComplexitySmall], 1e-9)
	assert.InDelta(t, 1.5, p.ByComplexity[task.ComplexityLarge], 1e-9)
	assert.NotContains(t, p.ByComplexity, task.ComplexityMedium)
	assert.InDelta(t, 1.25, p.ByTag["admin"], 1e-9)
	assert.NotContains(t, p.ByTag, "meeting")
}

func TestProfile_FactorFor(t *testing.T) {
	p := Profile{
		Overall:      1.1,
		ByComplexity: map[task.Complexity]float64{task.ComplexityMedium: 1.3},
		ByTag:        map[string]float64{"teaching": 1.4, "admin": 0.8},
	}

	f, basis := p.FactorFor(task.ComplexityMedium, []string{"admin", "teaching", "unknown"})
	assert.InDelta(t, 1.1, f, 1e-9)
	assert.Equal(t, BasisTag, basis)

	f, basis = p.FactorFor(task.ComplexityMedium, []string{"unknown"})
	assert.InDelta(t, 1.3, f, 1e-9)
	assert.Equal(t, BasisComplexity, basis)

	f, basis = p.FactorFor(task.ComplexityLarge, nil)
	assert.InDelta(t, 1.1, f, 1e-9)
	assert.Equal(t, BasisOverall, basis)

	f, basis = Profile{}.FactorFor(task.ComplexitySmall, nil)
	assert.Equal(t, 1.0, f, "zero profile is neutral")
	assert.Equal(t, BasisOverall, basis)
}

func TestProfile_CloneIsIndependent(t *testing.T) {
	p := NeutralProfile()
	p.ByTag["x"] = 2
	c := p.Clone()
	c.ByTag["x"] = 3
	assert.Equal(t, 2.0, p.ByTag["x"])
}

func TestComputeInsights(t *testing.T) {
	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	var records []Record
	for i := 0; i < 12; i++ {
		records = append(records, rec(string(rune('a'+i)), task.ComplexityMedium, 3, 4, base.Add(time.Duration(i)*time.Hour), "teaching"))
	}

	in := ComputeInsights(records)
	assert.Equal(t, 12, in.TotalCompletions)
	assert.Equal(t, 1.33, in.OverallFactor)
	assert.Equal(t, 1.33, in.ComplexityFactors[task.ComplexityMedium])
	assert.Equal(t, 1.33, in.TagFactors["teaching"])
	assert.Len(t, in.RecentCompletions, 5)
	assert.Equal(t, "l", in.RecentCompletions[0].TaskID, "newest first")
	assert.Len(t, in.AccuracyTrend, 10)
	assert.Equal(t, 1.33, in.AccuracyTrend[0].Accuracy)
	assert.Equal(t, "c", in.AccuracyTrend[9].TaskID)
}

func TestComputeInsights_Empty(t *testing.T) {
	in := ComputeInsights(nil)
	assert.Equal(t, 0, in.TotalCompletions)
	assert.Equal(t, 1.0, in.OverallFactor)
	assert.NotNil(t, in.RecentCompletions)
	assert.NotNil(t, in.AccuracyTrend)
}
