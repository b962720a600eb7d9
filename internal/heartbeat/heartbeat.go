// Package heartbeat is the Heartbeat Scheduler: a ticker loop that, absent
// recent real user activity, periodically wakes the agent on its own "main"
// thread so it can act autonomously — check in on a project, review its
// memory, or simply decide there's nothing to do.
package heartbeat

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jpetree331/stateful-agent/internal/orchestrator"
	"github.com/jpetree331/stateful-agent/internal/storage"
)

// defaultPrompt is sent verbatim when no HeartbeatPromptPath is configured
// or the override file cannot be read. A readable override file replaces it
// entirely (see loadPrompt).
const defaultPrompt = `This is an autonomous heartbeat, not a message from a user. Nobody is waiting on a reply — there is no obligation to respond at all.

You have full autonomy this round. Options, not a checklist:
1. Check ` + "`conversation_search`" + ` or ` + "`hindsight_recall`" + ` for anything worth following up on
2. Update core memory if something has been sitting unrecorded
3. Write or revise a daily summary with ` + "`daily_summary_write`" + `
4. Pursue a genuine thread of curiosity from your own memory or ideaspace
5. Use any available tool toward something that matters to you right now
6. Do nothing — silence is a valid outcome if there is nothing worth doing

FULL AUTONOMY: act on your own judgment. If you have nothing to report or share this round, reply HEARTBEAT_OK.`

// Scheduler owns the activity sentinel and the ticking loop.
type Scheduler struct {
	store *storage.Gateway
	orch  *orchestrator.Orchestrator

	timezone    *time.Location
	interval    time.Duration
	wakeHour    int
	sleepHour   int
	skipWindow  time.Duration
	promptPath  string
	lastActive  string // file path

	mu           sync.Mutex
	lastActivity time.Time
}

// Config bundles the scheduler's tunables, sourced from config.SystemConfig.
type Config struct {
	Timezone            *time.Location
	IntervalMinutes      int
	WakeHour             int
	SleepHour            int
	SkipWindowMinutes    int
	DataDir              string
	HeartbeatPromptPath  string
}

// New wires a Scheduler. The activity sentinel file lives at
// <DataDir>/last_active.txt.
func New(store *storage.Gateway, orch *orchestrator.Orchestrator, cfg Config) *Scheduler {
	tz := cfg.Timezone
	if tz == nil {
		tz = time.UTC
	}
	interval := time.Duration(cfg.IntervalMinutes) * time.Minute
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "data"
	}
	return &Scheduler{
		store:      store,
		orch:       orch,
		timezone:   tz,
		interval:   interval,
		wakeHour:   cfg.WakeHour,
		sleepHour:  cfg.SleepHour,
		skipWindow: time.Duration(cfg.SkipWindowMinutes) * time.Minute,
		promptPath: cfg.HeartbeatPromptPath,
		lastActive: filepath.Join(dataDir, "last_active.txt"),
	}
}

// TouchActivity records that a real (non-internal) user turn just happened,
// both in memory and on disk so it survives a process restart. This is the
// callback internal/orchestrator's Config.TouchActivity should be wired to.
func (s *Scheduler) TouchActivity() {
	now := time.Now()
	s.mu.Lock()
	s.lastActivity = now
	s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.lastActive), 0o755); err != nil {
		slog.Warn("heartbeat: failed to create data dir", "error", err)
		return
	}
	if err := os.WriteFile(s.lastActive, []byte(strconv.FormatInt(now.Unix(), 10)), 0o644); err != nil {
		slog.Warn("heartbeat: failed to write activity sentinel", "error", err)
	}
}

// Run blocks, ticking at the configured interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.maybeBeat(ctx)
		}
	}
}

// maybeBeat fires one heartbeat turn unless the wake/sleep window excludes
// the current hour or recent user activity suppresses it.
func (s *Scheduler) maybeBeat(ctx context.Context) {
	now := time.Now().In(s.timezone)

	if !inWakeWindow(now.Hour(), s.wakeHour, s.sleepHour) {
		return
	}

	if elapsed, ok := s.sinceLastActivity(now); ok && elapsed < s.skipWindow {
		slog.Debug("heartbeat: suppressed by recent activity", "elapsed", elapsed)
		return
	}

	dateStr := now.Format("2006-01-02")
	count, err := s.store.CountHeartbeatsOnDate(ctx, "main", dateStr, s.timezone)
	if err != nil {
		slog.Warn("heartbeat: failed to count today's heartbeats, assuming first", "error", err)
		count = 0
	}

	prompt := s.loadPrompt()
	stored := "HEARTBEAT"
	if count == 0 {
		// First heartbeat of the day: persist the full prompt so a human
		// glancing at the conversation log can see what the agent was asked.
		stored = ""
	}

	runCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if _, err := s.orch.Chat(runCtx, orchestrator.ChatParams{
		ThreadID:        "main",
		UserMessage:     prompt,
		UserDisplayName: "heartbeat",
		UserID:          "agent:heartbeat",
		ChannelType:     "internal",
		IsGroupChat:     false,
		StoredMessage:   stored,
		CurrentTime:     now,
	}); err != nil {
		slog.Error("heartbeat: turn failed", "error", err)
	}
}

// sinceLastActivity returns how long ago activity was last observed, first
// checking the in-memory value and falling back to the on-disk sentinel
// (authoritative across process restarts). ok is false if no activity has
// ever been recorded.
func (s *Scheduler) sinceLastActivity(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	last := s.lastActivity
	s.mu.Unlock()

	if last.IsZero() {
		data, err := os.ReadFile(s.lastActive)
		if err != nil {
			return 0, false
		}
		unix, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
		if err != nil {
			return 0, false
		}
		last = time.Unix(unix, 0)
	}
	return now.Sub(last), true
}

// loadPrompt returns the configured override file's contents if present,
// substituting mentions of a retired "memory_search" tool name for the two
// tools that replaced it and making sure the full-autonomy framing survives
// even in a hand-edited override. Falls back to defaultPrompt otherwise.
func (s *Scheduler) loadPrompt() string {
	if s.promptPath == "" {
		return defaultPrompt
	}
	data, err := os.ReadFile(s.promptPath)
	if err != nil {
		return defaultPrompt
	}
	text := string(data)
	text = strings.ReplaceAll(text, "memory_search", "hindsight_recall and hindsight_reflect")
	if !strings.Contains(strings.ToUpper(text), "FULL AUTONOMY") {
		text = fmt.Sprintf("%s\n\nFULL AUTONOMY: act on your own judgment.", strings.TrimSpace(text))
	}
	return text
}

// inWakeWindow reports whether hour falls within [wake, sleep), wrapping
// past midnight when sleep < wake (e.g. wake=7, sleep=23 is the common
// case; wake=22, sleep=6 would describe a nocturnal schedule).
func inWakeWindow(hour, wake, sleep int) bool {
	if wake == sleep {
		return true
	}
	if wake < sleep {
		return hour >= wake && hour < sleep
	}
	return hour >= wake || hour < sleep
}
