package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jpetree331/stateful-agent/internal/storage"
	"github.com/jpetree331/stateful-agent/pkg/api"
)

// scheduler is the minimal surface the cron CRUD tools need from the Cron
// Engine: a signal that the job table changed so the in-memory firing
// dedup cache gets dropped. Declared here (rather than importing
// internal/cron) to keep this package's dependency direction one-way.
type scheduler interface {
	Reload()
}

func formatJob(j *storage.CronJob) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "#%d %s", j.ID, j.Name)
	if j.Description != "" {
		fmt.Fprintf(&sb, " — %s", j.Description)
	}
	fmt.Fprintf(&sb, "\n  status: %s", j.Status)
	if j.IsOneTime {
		runAt := "unscheduled"
		if j.RunDate != nil {
			runAt = j.RunDate.Format("2006-01-02")
		}
		fmt.Fprintf(&sb, " | one-time on %s at %s %s", runAt, j.ScheduleTime, storage.TimezoneDisplay(j.Timezone))
	} else {
		fmt.Fprintf(&sb, " | %s at %s %s", storage.FormatDays(j.ScheduleDays), j.ScheduleTime, storage.TimezoneDisplay(j.Timezone))
	}
	if j.LastRunAt != nil {
		fmt.Fprintf(&sb, "\n  last run: %s (%s)", j.LastRunAt.Format("2006-01-02 15:04"), j.LastRunStatus)
	}
	return sb.String()
}

func intArg(args map[string]any, key string) ([]int, bool) {
	raw, ok := args[key]
	if !ok {
		return nil, false
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, false
	}
	out := make([]int, 0, len(items))
	for _, it := range items {
		if f, ok := it.(float64); ok {
			out = append(out, int(f))
		}
	}
	return out, true
}

// CronListJobs wraps cron_list_jobs_tool.
type CronListJobs struct {
	store *storage.Gateway
}

func NewCronListJobs(store *storage.Gateway) *CronListJobs { return &CronListJobs{store: store} }

func (t *CronListJobs) Name() string { return "cron_list_jobs_tool" }
func (t *CronListJobs) Description() string {
	return "List scheduled cron jobs, optionally filtered by status."
}
func (t *CronListJobs) Parameters() map[string]any {
	return map[string]any{
		"status": map[string]any{"type": "string", "description": "Optional: 'active' or 'paused'. Omit for all.", "enum": []string{"active", "paused"}},
	}
}
func (t *CronListJobs) RequiredParameters() []string { return nil }

func (t *CronListJobs) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	status, _ := args["status"].(string)
	jobs, err := t.store.ListCronJobs(ctx, status)
	if err != nil {
		return textResult("Error: %v", err), nil
	}
	if len(jobs) == 0 {
		return textResult("No cron jobs scheduled."), nil
	}
	lines := make([]string, 0, len(jobs))
	for _, j := range jobs {
		lines = append(lines, formatJob(j))
	}
	return textResult("%s", strings.Join(lines, "\n\n")), nil
}

// CronCreateJob wraps cron_create_job_tool.
type CronCreateJob struct {
	store *storage.Gateway
	sched scheduler
}

func NewCronCreateJob(store *storage.Gateway, sched scheduler) *CronCreateJob {
	return &CronCreateJob{store: store, sched: sched}
}

func (t *CronCreateJob) Name() string { return "cron_create_job_tool" }
func (t *CronCreateJob) Description() string {
	return "Create a new scheduled cron job. Recurring jobs fire on a set of weekdays at a time; one-time jobs fire once on a specific date. The job's instructions are delivered to you as a prompt when it fires, on the main conversation thread."
}
func (t *CronCreateJob) Parameters() map[string]any {
	return map[string]any{
		"name":          map[string]any{"type": "string", "description": "Short name for the job."},
		"instructions":  map[string]any{"type": "string", "description": "What to do when this job fires — delivered to you as the prompt."},
		"description":   map[string]any{"type": "string", "description": "Optional longer description."},
		"timezone":      map[string]any{"type": "string", "description": "IANA timezone name, e.g. 'America/New_York'. Defaults to America/New_York."},
		"schedule_time": map[string]any{"type": "string", "description": "Time of day, e.g. '7:00 PM' or '19:00'."},
		"schedule_days": map[string]any{
			"type":        "array",
			"description": "For recurring jobs: weekday numbers 0=Monday..6=Sunday. Omit for one-time jobs.",
			"items":       map[string]any{"type": "integer"},
		},
		"run_date": map[string]any{"type": "string", "description": "For one-time jobs: date in YYYY-MM-DD form. Presence of this field makes the job one-time."},
	}
}
func (t *CronCreateJob) RequiredParameters() []string {
	return []string{"name", "instructions", "schedule_time"}
}

func (t *CronCreateJob) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	p := storage.CreateCronJobParams{
		Name:         argStr(args, "name"),
		Instructions: argStr(args, "instructions"),
		Description:  argStr(args, "description"),
		Timezone:     argStr(args, "timezone"),
		ScheduleTime: argStr(args, "schedule_time"),
		CreatedBy:    "agent",
	}
	if days, ok := intArg(args, "schedule_days"); ok {
		p.ScheduleDays = days
	}
	if runDateStr := argStr(args, "run_date"); runDateStr != "" {
		d, err := time.Parse("2006-01-02", runDateStr)
		if err != nil {
			return textResult("Error: invalid run_date %q, expected YYYY-MM-DD", runDateStr), nil
		}
		p.RunDate = &d
	}

	job, err := t.store.CreateCronJob(ctx, p)
	if err != nil {
		return textResult("Error: %v", err), nil
	}
	if t.sched != nil {
		t.sched.Reload()
	}
	return textResult("Created job:\n%s", formatJob(job)), nil
}

func argStr(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// CronUpdateJob wraps cron_update_job_tool.
type CronUpdateJob struct {
	store *storage.Gateway
	sched scheduler
}

func NewCronUpdateJob(store *storage.Gateway, sched scheduler) *CronUpdateJob {
	return &CronUpdateJob{store: store, sched: sched}
}

func (t *CronUpdateJob) Name() string { return "cron_update_job_tool" }
func (t *CronUpdateJob) Description() string {
	return "Update fields on an existing cron job — name, description, instructions, timezone, schedule, or status."
}
func (t *CronUpdateJob) Parameters() map[string]any {
	return map[string]any{
		"id":            map[string]any{"type": "integer", "description": "Job ID to update."},
		"name":          map[string]any{"type": "string"},
		"description":   map[string]any{"type": "string"},
		"instructions":  map[string]any{"type": "string"},
		"timezone":      map[string]any{"type": "string"},
		"schedule_time": map[string]any{"type": "string"},
		"schedule_days": map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
		"status":        map[string]any{"type": "string", "enum": []string{"active", "paused"}},
	}
}
func (t *CronUpdateJob) RequiredParameters() []string { return []string{"id"} }

func (t *CronUpdateJob) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	id, ok := args["id"].(float64)
	if !ok {
		return textResult("Error: id is required"), nil
	}
	updates := map[string]any{}
	for _, key := range []string{"name", "description", "instructions", "timezone", "schedule_time", "status"} {
		if v := argStr(args, key); v != "" {
			updates[key] = v
		}
	}
	if days, ok := intArg(args, "schedule_days"); ok {
		updates["schedule_days"] = days
	}
	job, err := t.store.UpdateCronJob(ctx, int(id), updates)
	if err != nil {
		return textResult("Error: %v", err), nil
	}
	if t.sched != nil {
		t.sched.Reload()
	}
	return textResult("Updated job:\n%s", formatJob(job)), nil
}

// CronDeleteJob wraps cron_delete_job_tool.
type CronDeleteJob struct {
	store *storage.Gateway
	sched scheduler
}

func NewCronDeleteJob(store *storage.Gateway, sched scheduler) *CronDeleteJob {
	return &CronDeleteJob{store: store, sched: sched}
}

func (t *CronDeleteJob) Name() string                   { return "cron_delete_job_tool" }
func (t *CronDeleteJob) Description() string             { return "Permanently delete a cron job." }
func (t *CronDeleteJob) Parameters() map[string]any {
	return map[string]any{"id": map[string]any{"type": "integer", "description": "Job ID to delete."}}
}
func (t *CronDeleteJob) RequiredParameters() []string { return []string{"id"} }

func (t *CronDeleteJob) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	id, ok := args["id"].(float64)
	if !ok {
		return textResult("Error: id is required"), nil
	}
	deleted, err := t.store.DeleteCronJob(ctx, int(id))
	if err != nil {
		return textResult("Error: %v", err), nil
	}
	if t.sched != nil {
		t.sched.Reload()
	}
	if !deleted {
		return textResult("No job with id %d.", int(id)), nil
	}
	return textResult("Deleted job #%d.", int(id)), nil
}

// CronPauseJob wraps cron_pause_job_tool.
type CronPauseJob struct {
	store *storage.Gateway
	sched scheduler
}

func NewCronPauseJob(store *storage.Gateway, sched scheduler) *CronPauseJob {
	return &CronPauseJob{store: store, sched: sched}
}

func (t *CronPauseJob) Name() string        { return "cron_pause_job_tool" }
func (t *CronPauseJob) Description() string { return "Pause a cron job without deleting it." }
func (t *CronPauseJob) Parameters() map[string]any {
	return map[string]any{"id": map[string]any{"type": "integer", "description": "Job ID to pause."}}
}
func (t *CronPauseJob) RequiredParameters() []string { return []string{"id"} }

func (t *CronPauseJob) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	id, ok := args["id"].(float64)
	if !ok {
		return textResult("Error: id is required"), nil
	}
	job, err := t.store.PauseCronJob(ctx, int(id))
	if err != nil {
		return textResult("Error: %v", err), nil
	}
	if t.sched != nil {
		t.sched.Reload()
	}
	return textResult("Paused job:\n%s", formatJob(job)), nil
}

// CronResumeJob wraps cron_resume_job_tool.
type CronResumeJob struct {
	store *storage.Gateway
	sched scheduler
}

func NewCronResumeJob(store *storage.Gateway, sched scheduler) *CronResumeJob {
	return &CronResumeJob{store: store, sched: sched}
}

func (t *CronResumeJob) Name() string        { return "cron_resume_job_tool" }
func (t *CronResumeJob) Description() string { return "Resume a paused cron job." }
func (t *CronResumeJob) Parameters() map[string]any {
	return map[string]any{"id": map[string]any{"type": "integer", "description": "Job ID to resume."}}
}
func (t *CronResumeJob) RequiredParameters() []string { return []string{"id"} }

func (t *CronResumeJob) Execute(ctx context.Context, args map[string]any) (*api.ToolResult, error) {
	id, ok := args["id"].(float64)
	if !ok {
		return textResult("Error: id is required"), nil
	}
	job, err := t.store.ResumeCronJob(ctx, int(id))
	if err != nil {
		return textResult("Error: %v", err), nil
	}
	if t.sched != nil {
		t.sched.Reload()
	}
	return textResult("Resumed job:\n%s", formatJob(job)), nil
}
