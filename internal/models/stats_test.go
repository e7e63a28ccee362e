package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerivedMetrics(t *testing.T) {
	agg := StatAggregate{Generated: 9, Attended: 6, Absent: 2, Redirected: 1, Cancelled: 1}

	assert.Equal(t, 9, agg.TotalProcessed())
	assert.InDelta(t, 66.67, agg.EfficiencyPercent(), 0.001)
	assert.InDelta(t, 22.22, agg.AbsencePercent(), 0.001)
	assert.InDelta(t, 11.11, agg.RedirectPercent(), 0.001)
}

func TestDerivedMetricsZeroGenerated(t *testing.T) {
	agg := StatAggregate{}
	assert.Zero(t, agg.EfficiencyPercent())
	assert.Zero(t, agg.AbsencePercent())
	assert.Zero(t, agg.RedirectPercent())
	assert.Zero(t, agg.TotalProcessed())
}

func TestRoundHalfUp(t *testing.T) {
	assert.Equal(t, 33.33, RoundHalfUp(33.333333, 2))
	assert.Equal(t, 66.67, RoundHalfUp(66.666666, 2))
	assert.Equal(t, 0.13, RoundHalfUp(0.125, 2))
}

func TestIsDepartmentWide(t *testing.T) {
	assert.True(t, StatAggregate{}.IsDepartmentWide())
	assert.False(t, StatAggregate{EmployeeID: "emp-1"}.IsDepartmentWide())
}
