// Package http is the synchronous HTTP ingress adapter: a single /chat
// request/response endpoint on top of the same api.Channel contract the
// long-polling and websocket channels use, plus the memory/cron admin
// surface (core-memory overwrite, cron job CRUD + pause/resume/clone, recent
// message listing, health) that bypasses the channel/orchestrator
// round-trip entirely.
package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jpetree331/stateful-agent/internal/apperror"
	"github.com/jpetree331/stateful-agent/internal/storage"
	"github.com/jpetree331/stateful-agent/pkg/api"
	"github.com/jpetree331/stateful-agent/pkg/llm"
)

// HTTPConfig configures the listen address and CORS allow-list for the
// admin/chat HTTP surface.
type HTTPConfig struct {
	Addr        string `json:"addr"`
	CORSOrigins string `json:"cors_origins"`
}

// pendingReply is how Send() hands a finished turn's text back to the
// goroutine blocked in the /chat handler.
type pendingReply struct {
	text string
	err  error
}

// HTTPChannel is the api.Channel implementation backing the HTTP surface.
// Each /chat POST registers a pending reply slot keyed by the session's
// ChannelID, ChatID and UserID before calling OnMessage, then blocks on that
// slot until Send() fills it or the request times out.
type HTTPChannel struct {
	cfg    HTTPConfig
	store  *storage.Gateway
	sched  Scheduler
	server *http.Server

	mu      sync.Mutex
	pending map[string]chan pendingReply
}

// Scheduler is the minimal surface the cron write endpoints need to
// invalidate the Cron Engine's firing dedup cache after a mutation.
type Scheduler interface {
	Reload()
}

func NewHTTPChannel(cfg HTTPConfig, store *storage.Gateway, sched Scheduler) *HTTPChannel {
	return &HTTPChannel{
		cfg:     cfg,
		store:   store,
		sched:   sched,
		pending: make(map[string]chan pendingReply),
	}
}

func (c *HTTPChannel) ID() string { return "http" }

func (c *HTTPChannel) Start(chctx api.ChannelContext) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", c.handleHealth)
	mux.HandleFunc("POST /chat", c.handleChat(chctx))
	mux.HandleFunc("GET /core-memory", c.handleGetCoreMemory)
	mux.HandleFunc("POST /core-memory/{type}", c.handlePostCoreMemory)
	mux.HandleFunc("GET /messages", c.handleMessages)
	mux.HandleFunc("GET /cron/jobs", c.handleListCronJobs)
	mux.HandleFunc("POST /cron/jobs", c.handleCreateCronJob)
	mux.HandleFunc("GET /cron/jobs/{id}", c.handleGetCronJob)
	mux.HandleFunc("PUT /cron/jobs/{id}", c.handleUpdateCronJob)
	mux.HandleFunc("DELETE /cron/jobs/{id}", c.handleDeleteCronJob)
	mux.HandleFunc("POST /cron/jobs/{id}/pause", c.handlePauseCronJob)
	mux.HandleFunc("POST /cron/jobs/{id}/resume", c.handleResumeCronJob)
	mux.HandleFunc("POST /cron/jobs/{id}/clone", c.handleCloneCronJob)
	mux.HandleFunc("/cron/timezones", c.handleTimezones)

	addr := c.cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	c.server = &http.Server{Addr: addr, Handler: c.withCORS(mux)}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http channel listener failed", "error", err)
		}
	}()
	slog.Info("http channel listening", "addr", addr)
	return nil
}

func (c *HTTPChannel) Stop() error {
	if c.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.server.Shutdown(ctx)
}

// Send implements api.Channel: it delivers the orchestrator's reply to the
// goroutine blocked in handleChat for this request, identified by the
// session's ChannelID, ChatID and UserID.
func (c *HTTPChannel) Send(session api.SessionContext, message string) error {
	key := session.ChannelID + "|" + session.ChatID + "|" + session.UserID
	c.mu.Lock()
	ch, ok := c.pending[key]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("no pending http request for session %s", key)
	}
	ch <- pendingReply{text: message}
	return nil
}

func (c *HTTPChannel) SendSignal(api.SessionContext, string) error { return nil }

func (c *HTTPChannel) Stream(session api.SessionContext, blocks <-chan llm.ContentBlock) error {
	var sb strings.Builder
	for block := range blocks {
		if block.Type == llm.BlockTypeText {
			sb.WriteString(block.Text)
		}
	}
	return c.Send(session, sb.String())
}

// chatRequest mirrors the §6 /chat body: message/thread_id/user_id are the
// routing triple, channel_type/is_group_chat pass through to the
// Orchestrator the same way every other ingress adapter's session implies
// them.
type chatRequest struct {
	UserID      string `json:"user_id"`
	ThreadID    string `json:"thread_id"`
	Message     string `json:"message"`
	ChannelType string `json:"channel_type"`
	IsGroupChat bool   `json:"is_group_chat"`
}

type chatResponse struct {
	Response string `json:"response"`
}

func (c *HTTPChannel) handleChat(chctx api.ChannelContext) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			http.Error(w, "message is required", http.StatusBadRequest)
			return
		}
		if req.UserID == "" {
			req.UserID = "http-anonymous"
		}
		if req.ThreadID == "" {
			req.ThreadID = "main"
		}
		if req.ChannelType == "" {
			req.ChannelType = "http"
		}

		// pkg/handler's threadFor/IsGroupChat derivation works entirely off
		// SessionContext (ChatID vs UserID), and Send only hands the session
		// back, not the request itself — so ChatID has to simultaneously
		// pick the thread_id the caller asked for and reproduce the group/DM
		// shape threadFor expects. A DM collapses onto the caller's own
		// UserID (threadFor folds that to "main", matching every other
		// channel); a group chat keeps the caller's thread_id as ChatID.
		chatID := req.UserID
		if req.IsGroupChat {
			chatID = req.ThreadID
		}
		session := api.SessionContext{
			ChannelID: req.ChannelType,
			UserID:    req.UserID,
			ChatID:    chatID,
			Username:  req.UserID,
		}

		pendingKey := session.ChannelID + "|" + session.ChatID + "|" + session.UserID
		replyCh := make(chan pendingReply, 1)
		c.mu.Lock()
		c.pending[pendingKey] = replyCh
		c.mu.Unlock()
		defer func() {
			c.mu.Lock()
			delete(c.pending, pendingKey)
			c.mu.Unlock()
		}()

		chctx.OnMessage(c.ID(), &api.UnifiedMessage{
			Session: session,
			Content: req.Message,
		})

		select {
		case reply := <-replyCh:
			if reply.err != nil {
				http.Error(w, reply.err.Error(), http.StatusInternalServerError)
				return
			}
			writeJSON(w, http.StatusOK, chatResponse{Response: reply.text})
		case <-r.Context().Done():
			http.Error(w, "request cancelled", http.StatusRequestTimeout)
		case <-time.After(5 * time.Minute):
			http.Error(w, "turn timed out", http.StatusGatewayTimeout)
		}
	}
}

func (c *HTTPChannel) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (c *HTTPChannel) handleGetCoreMemory(w http.ResponseWriter, r *http.Request) {
	blocks, err := c.store.GetAllBlocks(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blocks)
}

type coreMemoryWriteRequest struct {
	Content string `json:"content"`
}

// handlePostCoreMemory overwrites a block wholesale (§6 POST
// /core-memory/{type}), pushing the prior content into core_memory_history
// the same way the core_memory_update tool does.
func (c *HTTPChannel) handlePostCoreMemory(w http.ResponseWriter, r *http.Request) {
	blockType := r.PathValue("type")
	var req coreMemoryWriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	version, err := c.store.UpdateBlock(r.Context(), blockType, req.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"block_type": blockType, "version": version})
}

func (c *HTTPChannel) handleMessages(w http.ResponseWriter, r *http.Request) {
	threadID := r.URL.Query().Get("thread_id")
	if threadID == "" {
		threadID = "main"
	}
	limit := 50
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 {
		limit = l
	}
	rows, err := c.store.LoadMessages(r.Context(), threadID, storage.LoadOptions{Limit: limit})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (c *HTTPChannel) handleListCronJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := c.store.ListCronJobs(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (c *HTTPChannel) handleGetCronJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	job, err := c.store.GetCronJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// cronJobRequest mirrors the cron_create_job_tool/cron_update_job_tool
// field set. Pointer fields distinguish "not supplied" from "set to the
// zero value" so PUT can apply a true partial patch.
type cronJobRequest struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	Instructions *string `json:"instructions"`
	Timezone     *string `json:"timezone"`
	ScheduleTime *string `json:"schedule_time"`
	ScheduleDays *[]int  `json:"schedule_days"`
	RunDate      *string `json:"run_date"`
	Status       *string `json:"status"`
}

func strVal(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// validateCronSchedule enforces §6's "one-time jobs require run_date +
// schedule_time; recurring require schedule_days + schedule_time" rule
// against a fully-resolved (post-merge) view of a job's schedule fields.
func validateCronSchedule(runDate *time.Time, days []int, scheduleTime string) error {
	if scheduleTime == "" {
		return fmt.Errorf("schedule_time is required: %w", apperror.ErrInvalidInput)
	}
	if runDate != nil {
		return nil
	}
	if len(days) == 0 {
		return fmt.Errorf("recurring jobs require schedule_days, or a run_date for a one-time job: %w", apperror.ErrInvalidInput)
	}
	return nil
}

func (c *HTTPChannel) handleCreateCronJob(w http.ResponseWriter, r *http.Request) {
	var req cronJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if strVal(req.Name) == "" || strVal(req.Instructions) == "" {
		http.Error(w, "name and instructions are required", http.StatusBadRequest)
		return
	}

	p := storage.CreateCronJobParams{
		Name:         strVal(req.Name),
		Instructions: strVal(req.Instructions),
		Description:  strVal(req.Description),
		Timezone:     strVal(req.Timezone),
		ScheduleTime: strVal(req.ScheduleTime),
		CreatedBy:    "user",
	}
	if req.ScheduleDays != nil {
		p.ScheduleDays = *req.ScheduleDays
	}
	if runDateStr := strVal(req.RunDate); runDateStr != "" {
		d, err := time.Parse("2006-01-02", runDateStr)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid run_date %q, expected YYYY-MM-DD", runDateStr), http.StatusBadRequest)
			return
		}
		p.RunDate = &d
	}

	if err := validateCronSchedule(p.RunDate, p.ScheduleDays, p.ScheduleTime); err != nil {
		writeError(w, err)
		return
	}

	job, err := c.store.CreateCronJob(r.Context(), p)
	if err != nil {
		writeError(w, err)
		return
	}
	c.reloadScheduler()
	writeJSON(w, http.StatusCreated, job)
}

func (c *HTTPChannel) handleUpdateCronJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	var req cronJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	existing, err := c.store.GetCronJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	// Resolve the merged view of the three schedule-defining fields so a
	// partial patch can't leave the job in an invalid recurring/one-time
	// state without the caller noticing.
	runDate := existing.RunDate
	days := existing.ScheduleDays
	scheduleTime := existing.ScheduleTime
	if req.RunDate != nil {
		if *req.RunDate == "" {
			runDate = nil
		} else {
			d, err := time.Parse("2006-01-02", *req.RunDate)
			if err != nil {
				http.Error(w, fmt.Sprintf("invalid run_date %q, expected YYYY-MM-DD", *req.RunDate), http.StatusBadRequest)
				return
			}
			runDate = &d
		}
	}
	if req.ScheduleDays != nil {
		days = *req.ScheduleDays
	}
	if req.ScheduleTime != nil {
		scheduleTime = *req.ScheduleTime
	}
	if err := validateCronSchedule(runDate, days, scheduleTime); err != nil {
		writeError(w, err)
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Instructions != nil {
		updates["instructions"] = *req.Instructions
	}
	if req.Timezone != nil {
		updates["timezone"] = *req.Timezone
	}
	if req.ScheduleTime != nil {
		updates["schedule_time"] = *req.ScheduleTime
	}
	if req.ScheduleDays != nil {
		updates["schedule_days"] = *req.ScheduleDays
	}
	if req.RunDate != nil {
		updates["run_date"] = runDate
	}
	if req.RunDate != nil || req.ScheduleDays != nil || req.ScheduleTime != nil {
		// Schedule shape may have flipped between one-time and recurring;
		// keep is_one_time consistent so the Cron Engine's due() picks the
		// right trigger-matching branch.
		updates["is_one_time"] = runDate != nil
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}

	job, err := c.store.UpdateCronJob(r.Context(), id, updates)
	if err != nil {
		writeError(w, err)
		return
	}
	c.reloadScheduler()
	writeJSON(w, http.StatusOK, job)
}

func (c *HTTPChannel) handleDeleteCronJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	deleted, err := c.store.DeleteCronJob(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if !deleted {
		http.Error(w, fmt.Sprintf("cron job %d: %v", id, apperror.ErrNotFound), http.StatusNotFound)
		return
	}
	c.reloadScheduler()
	w.WriteHeader(http.StatusNoContent)
}

func (c *HTTPChannel) handlePauseCronJob(w http.ResponseWriter, r *http.Request) {
	c.handleCronStatusTransition(w, r, c.store.PauseCronJob)
}

func (c *HTTPChannel) handleResumeCronJob(w http.ResponseWriter, r *http.Request) {
	c.handleCronStatusTransition(w, r, c.store.ResumeCronJob)
}

func (c *HTTPChannel) handleCronStatusTransition(w http.ResponseWriter, r *http.Request, op func(context.Context, int) (*storage.CronJob, error)) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	job, err := op(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	c.reloadScheduler()
	writeJSON(w, http.StatusOK, job)
}

type cloneCronJobRequest struct {
	Name string `json:"name"`
}

func (c *HTTPChannel) handleCloneCronJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid job id", http.StatusBadRequest)
		return
	}
	var req cloneCronJobRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
			return
		}
	}
	job, err := c.store.CloneCronJob(r.Context(), id, req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	c.reloadScheduler()
	writeJSON(w, http.StatusCreated, job)
}

func (c *HTTPChannel) handleTimezones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, storage.CommonTimezones)
}

func (c *HTTPChannel) reloadScheduler() {
	if c.sched != nil {
		c.sched.Reload()
	}
}

func (c *HTTPChannel) withCORS(next http.Handler) http.Handler {
	allowed := map[string]bool{}
	for _, o := range strings.Split(c.cfg.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && (allowed[origin] || allowed["*"]) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError maps a Storage Gateway error onto an HTTP status via
// apperror.StatusHint rather than always answering 500.
func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), apperror.StatusHint(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
