package models

import "time"

// Department is a service counter with its own queue and schedule.
type Department struct {
	ID                    string    `db:"id" json:"id"`
	Code                  string    `db:"code" json:"code"`
	Name                  string    `db:"name" json:"name"`
	Active                bool      `db:"active" json:"active"`
	RequiresAppointment   bool      `db:"requires_appointment" json:"requires_appointment"`
	ResponsibleEmployeeID *string   `db:"responsible_employee_id" json:"responsible_employee_id,omitempty"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
}

// ScheduleBlock is a weekly bookable time block for appointment turns.
// Slots start at StartTime and repeat every IntervalMinutes until EndTime
// (exclusive). Times use "HH:MM" in the office's local zone.
type ScheduleBlock struct {
	ID              string `db:"id" json:"id"`
	DepartmentID    string `db:"department_id" json:"department_id"`
	DayOfWeek       int    `db:"day_of_week" json:"day_of_week"`
	StartTime       string `db:"start_time" json:"start_time"`
	EndTime         string `db:"end_time" json:"end_time"`
	IntervalMinutes int    `db:"interval_minutes" json:"interval_minutes"`
	Capacity        int    `db:"capacity" json:"capacity"`
}
