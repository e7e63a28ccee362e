package models

import (
	"math"
	"time"
)

// StatAggregate is one counters row per (date, department, employee). The
// department-wide aggregate uses an empty employee id; both kinds share the
// same shape and are updated independently.
type StatAggregate struct {
	ID           string    `db:"id" json:"id"`
	StatDate     time.Time `db:"stat_date" json:"stat_date"`
	DepartmentID string    `db:"department_id" json:"department_id"`
	EmployeeID   string    `db:"employee_id" json:"employee_id,omitempty"`

	Generated  int `db:"generated" json:"generated"`
	Attended   int `db:"attended" json:"attended"`
	Absent     int `db:"absent" json:"absent"`
	Redirected int `db:"redirected" json:"redirected"`
	Cancelled  int `db:"cancelled" json:"cancelled"`

	AvgWaitMinutes      float64 `db:"avg_wait_minutes" json:"avg_wait_minutes"`
	AvgServiceMinutes   float64 `db:"avg_service_minutes" json:"avg_service_minutes"`
	TotalServiceMinutes int     `db:"total_service_minutes" json:"total_service_minutes"`
	MinWaitMinutes      int     `db:"min_wait_minutes" json:"min_wait_minutes"`
	MaxWaitMinutes      int     `db:"max_wait_minutes" json:"max_wait_minutes"`

	CurHour      int `db:"cur_hour" json:"-"`
	CurHourCount int `db:"cur_hour_count" json:"-"`
	PeakHour     int `db:"peak_hour" json:"peak_hour"`
	PeakCount    int `db:"peak_count" json:"peak_count"`

	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// IsDepartmentWide reports whether this is the department-level aggregate.
func (s StatAggregate) IsDepartmentWide() bool {
	return s.EmployeeID == ""
}

// TotalProcessed counts turns that reached a terminal outcome. Redirected
// turns keep existing under another department and are not processed.
func (s StatAggregate) TotalProcessed() int {
	return s.Attended + s.Absent + s.Cancelled
}

// EfficiencyPercent is attended/generated, 0 when nothing was generated.
func (s StatAggregate) EfficiencyPercent() float64 {
	return percent(s.Attended, s.Generated)
}

// AbsencePercent is absent/generated, 0 when nothing was generated.
func (s StatAggregate) AbsencePercent() float64 {
	return percent(s.Absent, s.Generated)
}

// RedirectPercent is redirected/generated, 0 when nothing was generated.
func (s StatAggregate) RedirectPercent() float64 {
	return percent(s.Redirected, s.Generated)
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return RoundHalfUp(float64(part)/float64(total)*100, 2)
}

// RoundHalfUp rounds half away from zero to the given number of decimals.
func RoundHalfUp(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Floor(v*factor+0.5) / factor
}

// StatFilter selects aggregate rows for range reads.
type StatFilter struct {
	From         time.Time
	To           time.Time
	DepartmentID string
	EmployeeID   string
}

// StatSummary is the derived view returned by read endpoints.
type StatSummary struct {
	StatAggregate
	TotalProcessed    int     `json:"total_processed"`
	EfficiencyPercent float64 `json:"efficiency_percent"`
	AbsencePercent    float64 `json:"absence_percent"`
	RedirectPercent   float64 `json:"redirect_percent"`
}
