// Package cron is the Cron Engine: a goroutine-driven scheduler that polls
// active cron jobs and fires them through the Turn Orchestrator on their own
// thread, "main", the same conversation thread a human talks to — so a cron
// firing shows up in the dashboard like an autonomous wake-up, not a hidden
// side channel.
//
// There is no scheduling library in play here: the trigger computation
// (recurring day-of-week/time match, one-time run-at match) is hand-rolled
// over a ticker, following the same debounce-loop shape as the config
// watcher (time.AfterFunc/ticker plus a done channel) rather than a
// goroutine per job.
package cron

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jpetree331/stateful-agent/internal/orchestrator"
	"github.com/jpetree331/stateful-agent/internal/storage"
)

// pollInterval is how often the scheduler re-scans active jobs. Jobs are
// keyed to the minute, so this only needs to be finer than a minute to
// avoid missing a boundary under scheduler jitter.
const pollInterval = 20 * time.Second

// Scheduler polls internal/storage's cron_jobs table and fires due jobs
// through the Turn Orchestrator.
type Scheduler struct {
	store *storage.Gateway
	orch  *orchestrator.Orchestrator

	// fired dedups a job within the same minute, since pollInterval ticks
	// more often than once a minute.
	fired map[int]string
}

// New wires a Scheduler. The Orchestrator is the one this process uses to
// serve human chat too — cron turns land on the same "main" thread.
func New(store *storage.Gateway, orch *orchestrator.Orchestrator) *Scheduler {
	return &Scheduler{store: store, orch: orch, fired: make(map[int]string)}
}

// Run blocks, polling until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	jobs, err := s.store.ListCronJobs(ctx, "active")
	if err != nil {
		slog.Error("cron: failed to list active jobs", "error", err)
		return
	}
	for _, job := range jobs {
		if !s.due(job) {
			continue
		}
		go s.execute(ctx, job)
	}
}

// due reports whether job should fire right now, and records the firing
// slot so a 20s poll tick doesn't re-fire the same minute twice.
func (s *Scheduler) due(job *storage.CronJob) bool {
	loc, err := time.LoadLocation(job.Timezone)
	if err != nil {
		slog.Error("cron: bad timezone on job", "job_id", job.ID, "timezone", job.Timezone, "error", err)
		return false
	}
	now := time.Now().In(loc)

	hour, minute, ok := parseTime(job.ScheduleTime)
	if !ok {
		return false
	}

	var slot string
	if job.IsOneTime {
		if job.RunDate == nil {
			return false
		}
		runDate := *job.RunDate
		if now.Year() != runDate.Year() || now.YearDay() != runDate.YearDay() {
			return false
		}
		if now.Hour() != hour || now.Minute() != minute {
			return false
		}
		slot = runDate.Format("2006-01-02") + " one-time"
	} else {
		if len(job.ScheduleDays) == 0 {
			return false
		}
		if !containsDay(job.ScheduleDays, int(goWeekdayToMonFirst(now.Weekday()))) {
			return false
		}
		if now.Hour() != hour || now.Minute() != minute {
			return false
		}
		slot = now.Format("2006-01-02 15:04")
	}

	if s.fired[job.ID] == slot {
		return false
	}
	s.fired[job.ID] = slot
	return true
}

// execute runs one firing: load the job fresh (it may have been edited or
// paused since tick() listed it), skip inactive jobs, run the turn, record
// the outcome, and deactivate one-time jobs after they complete.
func (s *Scheduler) execute(ctx context.Context, job *storage.CronJob) {
	fresh, err := s.store.GetCronJob(ctx, job.ID)
	if err != nil {
		slog.Error("cron: job vanished before firing", "job_id", job.ID, "error", err)
		return
	}
	if fresh.Status != "active" {
		_ = s.store.RecordCronRun(ctx, job.ID, "skipped", "")
		return
	}

	slog.Info("cron: firing job", "job_id", job.ID, "name", fresh.Name, "one_time", fresh.IsOneTime)

	loc, err := time.LoadLocation(fresh.Timezone)
	if err != nil {
		loc = time.UTC
	}
	now := time.Now().In(loc)

	prompt := fmt.Sprintf("[Cron: %s]\n\n%s", fresh.Name, fresh.Instructions)

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	_, err = s.orch.Chat(runCtx, orchestrator.ChatParams{
		ThreadID:        "main",
		UserMessage:     prompt,
		UserDisplayName: "cron",
		UserID:          "agent:cron",
		ChannelType:     "internal",
		IsGroupChat:     false,
		CurrentTime:     now,
	})
	if err != nil {
		slog.Error("cron: job failed", "job_id", fresh.ID, "error", err)
		if recErr := s.store.RecordCronRun(ctx, fresh.ID, "error", err.Error()); recErr != nil {
			slog.Error("cron: failed to record error", "job_id", fresh.ID, "error", recErr)
		}
		return
	}

	if err := s.store.RecordCronRun(ctx, fresh.ID, "success", ""); err != nil {
		slog.Error("cron: failed to record success", "job_id", fresh.ID, "error", err)
	}

	if fresh.IsOneTime {
		if _, err := s.store.PauseCronJob(ctx, fresh.ID); err != nil {
			slog.Error("cron: failed to deactivate one-time job", "job_id", fresh.ID, "error", err)
		}
	}
}

// Reload drops the dedup cache so a job edited to a new time can fire again
// this same process lifetime. Called after every cron job mutation, both by
// the HTTP adapter's cron endpoints and by the cron tools.
func (s *Scheduler) Reload() {
	s.fired = make(map[int]string)
}

// parseTime accepts "7:00 PM" and "19:00" alike, returning 24-hour
// (hour, minute).
func parseTime(raw string) (hour, minute int, ok bool) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if s == "" {
		return 0, 0, false
	}

	isPM := strings.Contains(s, "PM")
	isAM := strings.Contains(s, "AM")
	s = strings.TrimSpace(strings.NewReplacer("AM", "", "PM", "").Replace(s))

	var h, m int
	var err error
	if idx := strings.Index(s, ":"); idx != -1 {
		h, err = strconv.Atoi(strings.TrimSpace(s[:idx]))
		if err != nil {
			return 0, 0, false
		}
		m, err = strconv.Atoi(strings.TrimSpace(s[idx+1:]))
		if err != nil {
			return 0, 0, false
		}
	} else {
		h, err = strconv.Atoi(s)
		if err != nil {
			return 0, 0, false
		}
		m = 0
	}

	if isPM || isAM {
		if isPM && h != 12 {
			h += 12
		} else if isAM && h == 12 {
			h = 0
		}
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, false
	}
	return h, m, true
}

func containsDay(days []int, d int) bool {
	for _, v := range days {
		if v == d {
			return true
		}
	}
	return false
}

// goWeekdayToMonFirst converts time.Weekday (0=Sunday) to the schedule_days
// convention used throughout this codebase (0=Monday .. 6=Sunday).
func goWeekdayToMonFirst(w time.Weekday) int {
	return (int(w) + 6) % 7
}
