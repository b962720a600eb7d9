package storage

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/jpetree331/stateful-agent/internal/apperror"
)

// CronJob mirrors one row of the cron_jobs table.
type CronJob struct {
	ID             int
	Name           string
	Description    string
	Instructions   string
	Timezone       string
	ScheduleDays   []int  // 0=Monday .. 6=Sunday; nil for one-time jobs
	ScheduleTime   string // "HH:MM AM/PM" or "HH:MM"; set for one-time jobs too
	RunDate        *time.Time
	IsOneTime      bool
	Status         string // "active" | "paused"
	CreatedBy      string // "user" | "agent"
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastRunAt      *time.Time
	LastRunStatus  string
	LastRunError   string
	RunCount       int
}

// CreateCronJobParams is the input to CreateCronJob.
type CreateCronJobParams struct {
	Name         string
	Instructions string
	ScheduleDays []int
	ScheduleTime string
	Timezone     string
	Description  string
	CreatedBy    string
	RunDate      *time.Time // non-nil marks a one-time job
}

const cronJobColumns = `id, name, description, instructions, timezone, schedule_days,
	schedule_time, run_date, is_one_time, status, created_by, created_at, updated_at,
	last_run_at, last_run_status, last_run_error, run_count`

func scanCronJob(row pgx.Row) (*CronJob, error) {
	var j CronJob
	var description, scheduleTime, lastRunStatus, lastRunError *string
	if err := row.Scan(
		&j.ID, &j.Name, &description, &j.Instructions, &j.Timezone, &j.ScheduleDays,
		&scheduleTime, &j.RunDate, &j.IsOneTime, &j.Status, &j.CreatedBy, &j.CreatedAt, &j.UpdatedAt,
		&j.LastRunAt, &lastRunStatus, &lastRunError, &j.RunCount,
	); err != nil {
		return nil, err
	}
	if description != nil {
		j.Description = *description
	}
	if scheduleTime != nil {
		j.ScheduleTime = *scheduleTime
	}
	if lastRunStatus != nil {
		j.LastRunStatus = *lastRunStatus
	}
	if lastRunError != nil {
		j.LastRunError = *lastRunError
	}
	return &j, nil
}

// CreateCronJob inserts a new job, recurring (ScheduleDays+ScheduleTime) or
// one-time (RunDate), and returns the stored row.
func (g *Gateway) CreateCronJob(ctx context.Context, p CreateCronJobParams) (*CronJob, error) {
	if p.Timezone == "" {
		p.Timezone = "America/New_York"
	}
	if p.CreatedBy == "" {
		p.CreatedBy = "user"
	}
	isOneTime := p.RunDate != nil

	row := g.pool.QueryRow(ctx, `
		INSERT INTO cron_jobs
		(name, description, instructions, timezone, schedule_days, schedule_time, run_date, is_one_time, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+cronJobColumns,
		p.Name, nullableStr(p.Description), p.Instructions, p.Timezone, p.ScheduleDays,
		nullableStr(p.ScheduleTime), p.RunDate, isOneTime, p.CreatedBy)

	job, err := scanCronJob(row)
	if err != nil {
		return nil, fmt.Errorf("create cron job: %w", err)
	}
	return job, nil
}

func nullableStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// GetCronJob fetches a single job by ID.
func (g *Gateway) GetCronJob(ctx context.Context, id int) (*CronJob, error) {
	row := g.pool.QueryRow(ctx, "SELECT "+cronJobColumns+" FROM cron_jobs WHERE id = $1", id)
	job, err := scanCronJob(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("cron job %d: %w", id, apperror.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get cron job: %w", err)
	}
	return job, nil
}

// ListCronJobs lists jobs newest-first, optionally filtered by status
// ("active"/"paused"; empty means all).
func (g *Gateway) ListCronJobs(ctx context.Context, status string) ([]*CronJob, error) {
	sql := "SELECT " + cronJobColumns + " FROM cron_jobs"
	var args []any
	if status != "" {
		sql += " WHERE status = $1"
		args = append(args, status)
	}
	sql += " ORDER BY created_at DESC"

	rows, err := g.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list cron jobs: %w", err)
	}
	defer rows.Close()

	var out []*CronJob
	for rows.Next() {
		job, err := scanCronJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cron job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// cronJobAllowedUpdateFields mirrors the original gateway's allow-list —
// callers cannot patch created_by, run counters, or timestamps directly.
var cronJobAllowedUpdateFields = map[string]bool{
	"name": true, "description": true, "instructions": true, "timezone": true,
	"schedule_days": true, "schedule_time": true, "run_date": true, "status": true,
	"is_one_time": true,
}

// UpdateCronJob applies a partial update over the allow-listed fields. An
// empty updates map is a no-op that just returns the current row.
func (g *Gateway) UpdateCronJob(ctx context.Context, id int, updates map[string]any) (*CronJob, error) {
	var setClauses []string
	var args []any
	i := 1
	for k, v := range updates {
		if !cronJobAllowedUpdateFields[k] {
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", k, i))
		args = append(args, v)
		i++
	}
	if len(setClauses) == 0 {
		return g.GetCronJob(ctx, id)
	}

	sql := "UPDATE cron_jobs SET "
	for idx, c := range setClauses {
		if idx > 0 {
			sql += ", "
		}
		sql += c
	}
	sql += fmt.Sprintf(", updated_at = NOW() WHERE id = $%d RETURNING %s", i, cronJobColumns)
	args = append(args, id)

	row := g.pool.QueryRow(ctx, sql, args...)
	job, err := scanCronJob(row)
	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("cron job %d: %w", id, apperror.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("update cron job: %w", err)
	}
	return job, nil
}

// DeleteCronJob removes a job, reporting whether a row was actually deleted.
func (g *Gateway) DeleteCronJob(ctx context.Context, id int) (bool, error) {
	var deletedID int
	err := g.pool.QueryRow(ctx, "DELETE FROM cron_jobs WHERE id = $1 RETURNING id", id).Scan(&deletedID)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete cron job: %w", err)
	}
	return true, nil
}

// PauseCronJob/ResumeCronJob flip status through UpdateCronJob.
func (g *Gateway) PauseCronJob(ctx context.Context, id int) (*CronJob, error) {
	return g.UpdateCronJob(ctx, id, map[string]any{"status": "paused"})
}

func (g *Gateway) ResumeCronJob(ctx context.Context, id int) (*CronJob, error) {
	return g.UpdateCronJob(ctx, id, map[string]any{"status": "active"})
}

// RecordCronRun stamps the outcome of one firing: status is one of
// "success", "error", "skipped", "aborted".
func (g *Gateway) RecordCronRun(ctx context.Context, id int, status, runErr string) error {
	_, err := g.pool.Exec(ctx, `
		UPDATE cron_jobs
		SET last_run_at = NOW(), last_run_status = $1, last_run_error = $2, run_count = run_count + 1
		WHERE id = $3`, status, nullableStr(runErr), id)
	if err != nil {
		return fmt.Errorf("record cron run: %w", err)
	}
	return nil
}

// CloneCronJob duplicates an existing job under a new name, always
// attributed to "user" regardless of the original's created_by.
func (g *Gateway) CloneCronJob(ctx context.Context, id int, newName string) (*CronJob, error) {
	original, err := g.GetCronJob(ctx, id)
	if err != nil {
		return nil, err
	}
	name := newName
	if name == "" {
		name = original.Name + " (Copy)"
	}
	return g.CreateCronJob(ctx, CreateCronJobParams{
		Name:         name,
		Instructions: original.Instructions,
		ScheduleDays: original.ScheduleDays,
		ScheduleTime: original.ScheduleTime,
		Timezone:     original.Timezone,
		Description:  original.Description,
		CreatedBy:    "user",
		RunDate:      original.RunDate,
	})
}

// CommonTimezone is one entry in the curated timezone dropdown.
type CommonTimezone struct {
	Name    string
	Display string
}

// CommonTimezones is the curated 15-entry list offered to cron-job editors,
// in display order.
var CommonTimezones = []CommonTimezone{
	{"America/New_York", "Eastern Time (ET)"},
	{"America/Chicago", "Central Time (CT)"},
	{"America/Denver", "Mountain Time (MT)"},
	{"America/Los_Angeles", "Pacific Time (PT)"},
	{"America/Anchorage", "Alaska Time (AKT)"},
	{"Pacific/Honolulu", "Hawaii Time (HT)"},
	{"Europe/London", "Greenwich Mean Time (GMT)"},
	{"Europe/Paris", "Central European Time (CET)"},
	{"Europe/Athens", "Eastern European Time (EET)"},
	{"Asia/Tokyo", "Japan Standard Time (JST)"},
	{"Asia/Shanghai", "China Standard Time (CST)"},
	{"Asia/Dubai", "Gulf Standard Time (GST)"},
	{"Australia/Sydney", "Australian Eastern Time (AET)"},
	{"Pacific/Auckland", "New Zealand Time (NZT)"},
	{"UTC", "UTC"},
}

// timezoneDisplayIndex is an insertion-ordered name->display lookup built
// once from CommonTimezones, so TimezoneDisplay doesn't re-scan the curated
// list on every cron-job render. Built lazily since it's only ever needed
// by TimezoneDisplay, not by the dropdown endpoint (which serves
// CommonTimezones itself, in order).
var (
	timezoneDisplayIndex     *orderedmap.OrderedMap[string, string]
	timezoneDisplayIndexOnce sync.Once
)

func buildTimezoneDisplayIndex() *orderedmap.OrderedMap[string, string] {
	timezoneDisplayIndexOnce.Do(func() {
		timezoneDisplayIndex = orderedmap.New[string, string](len(CommonTimezones))
		for _, tz := range CommonTimezones {
			timezoneDisplayIndex.Set(tz.Name, tz.Display)
		}
	})
	return timezoneDisplayIndex
}

// TimezoneDisplay returns the curated display label for a timezone, falling
// back to the raw name if it's not in the curated list.
func TimezoneDisplay(tzName string) string {
	if display, ok := buildTimezoneDisplayIndex().Get(tzName); ok {
		return display
	}
	return tzName
}

var dayNames = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// FormatDays renders a 0=Monday..6=Sunday day list as a readable string,
// recognizing the "every day"/"weekdays"/"weekends" special cases.
func FormatDays(days []int) string {
	if len(days) == 7 {
		return "Every day"
	}
	if len(days) == 5 && isWeekdaySet(days) {
		return "Weekdays"
	}
	if len(days) == 2 && isWeekendSet(days) {
		return "Weekends"
	}
	sorted := append([]int(nil), days...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	labels := make([]string, len(sorted))
	for i, d := range sorted {
		labels[i] = dayNames[d]
	}
	out := ""
	for i, l := range labels {
		if i > 0 {
			out += ", "
		}
		out += l
	}
	return out
}

func isWeekdaySet(days []int) bool {
	seen := map[int]bool{}
	for _, d := range days {
		if d > 4 {
			return false
		}
		seen[d] = true
	}
	return len(seen) == 5
}

func isWeekendSet(days []int) bool {
	seen := map[int]bool{}
	for _, d := range days {
		if d != 5 && d != 6 {
			return false
		}
		seen[d] = true
	}
	return len(seen) == 2
}
