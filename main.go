package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpetree331/stateful-agent/internal/cron"
	"github.com/jpetree331/stateful-agent/internal/heartbeat"
	"github.com/jpetree331/stateful-agent/internal/memory"
	"github.com/jpetree331/stateful-agent/internal/orchestrator"
	"github.com/jpetree331/stateful-agent/internal/prompt"
	"github.com/jpetree331/stateful-agent/internal/storage"
	"github.com/jpetree331/stateful-agent/internal/tools"
	"github.com/jpetree331/stateful-agent/pkg/channels"
	_ "github.com/jpetree331/stateful-agent/pkg/channels/autoload" // Auto-register Channels
	"github.com/jpetree331/stateful-agent/pkg/config"
	"github.com/jpetree331/stateful-agent/pkg/gateway"
	"github.com/jpetree331/stateful-agent/pkg/handler"
	"github.com/jpetree331/stateful-agent/pkg/llm"
	_ "github.com/jpetree331/stateful-agent/pkg/llm/autoload" // Auto-register LLM Providers
	"github.com/jpetree331/stateful-agent/pkg/monitor"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reloadCh := config.WatchConfig(ctx, "config.json", "system.json")

	for {
		err := runAgent(ctx, reloadCh)
		if err != nil {
			slog.Error("system crashed or failed to load config", "error", err)
			slog.Info("waiting 5 seconds before retrying")
			select {
			case <-ctx.Done():
				return
			case <-reloadCh:
				slog.Info("configuration change detected while waiting, retrying immediately")
			case <-time.After(5 * time.Second):
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		default:
			slog.Info("==== configuration reloaded ====")
		}
	}
}

// runAgent executes a single lifecycle of the agent: wire storage, memory,
// prompt building, tools, the orchestrator, the cron and heartbeat
// schedulers, and every ingress channel, then block until shutdown or a
// config reload.
func runAgent(ctx context.Context, reloadCh <-chan struct{}) error {
	cfg, sysCfg, err := config.Load()
	if err != nil {
		monitor.PrintBanner()
		monitor.SetupSlog("info")
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	m := monitor.SetupEnvironment()
	slog.Info("==========================================")

	store, err := storage.Open(ctx, sysCfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open storage gateway: %w", err)
	}
	defer store.Close()

	if err := store.SetupSchema(ctx); err != nil {
		return fmt.Errorf("failed to bootstrap schema: %w", err)
	}

	episodic := memory.NewEpisodicClient(memory.EpisodicConfig{
		BaseURL: sysCfg.HindsightBaseURL,
		BankID:  sysCfg.HindsightBankID,
		UserID:  sysCfg.HindsightUserID,
		Enabled: sysCfg.HindsightEnabled,
	})
	mem := memory.NewService(store, episodic)

	tz, err := time.LoadLocation(sysCfg.AgentTimezone)
	if err != nil {
		slog.Warn("invalid agent timezone, falling back to UTC", "timezone", sysCfg.AgentTimezone, "error", err)
		tz = time.UTC
	}

	registry := tools.NewRegistry()
	registry.Register(tools.NewCoreMemoryUpdate(mem))
	registry.Register(tools.NewCoreMemoryAppend(mem))
	registry.Register(tools.NewCoreMemoryRollback(mem))
	registry.Register(tools.NewArchivalStore(mem))
	registry.Register(tools.NewArchivalQuery(mem))
	registry.Register(tools.NewConversationSearch(mem))
	registry.Register(tools.NewHindsightRecall(mem))
	registry.Register(tools.NewHindsightReflect(mem))
	registry.Register(tools.NewDailySummaryWrite(mem))
	registry.Register(tools.NewCronListJobs(store))

	client, err := llm.NewFromConfig(cfg.LLM, sysCfg)
	if err != nil {
		return fmt.Errorf("failed to init LLM client: %w", err)
	}

	builder := prompt.NewBuilder(mem, registry, tz)

	var activityTouch func()
	orch := orchestrator.New(store, mem, builder, registry, client, orchestrator.Config{
		Timezone:            tz,
		RecentMessagesLimit: sysCfg.RecentMessagesLimit,
		ContextWindowTokens: sysCfg.ContextWindowTokens,
		LLMTimeout:          time.Duration(sysCfg.LLMTimeoutMs) * time.Millisecond,
		TouchActivity:       func() { activityTouch() },
	})

	cronSched := cron.New(store, orch)
	registry.Register(tools.NewCronCreateJob(store, cronSched))
	registry.Register(tools.NewCronUpdateJob(store, cronSched))
	registry.Register(tools.NewCronDeleteJob(store, cronSched))
	registry.Register(tools.NewCronPauseJob(store, cronSched))
	registry.Register(tools.NewCronResumeJob(store, cronSched))

	hbSched := heartbeat.New(store, orch, heartbeat.Config{
		Timezone:            tz,
		IntervalMinutes:     sysCfg.HeartbeatIntervalMinutes,
		WakeHour:            sysCfg.HeartbeatWakeHour,
		SleepHour:           sysCfg.HeartbeatSleepHour,
		SkipWindowMinutes:   sysCfg.HeartbeatSkipWindowMinutes,
		DataDir:             sysCfg.DataDir,
		HeartbeatPromptPath: sysCfg.HeartbeatPromptPath,
	})
	activityTouch = hbSched.TouchActivity

	schedCtx, cancelSched := context.WithCancel(ctx)
	defer cancelSched()
	go cronSched.Run(schedCtx)
	go hbSched.Run(schedCtx)

	chs := channels.NewSource(cfg.Channels, sysCfg, store, cronSched).Load()

	h := handler.NewChatHandler(orch, time.Duration(sysCfg.LLMTimeoutMs)*time.Millisecond*2)

	gw, err := gateway.NewGatewayBuilder().
		WithSystemConfig(sysCfg).
		WithMonitor(m).
		WithChannel(chs...).
		WithHandler(h).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}

	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping services")
		cancelSched()
		gw.StopAll()
		slog.Info("bye")
		return nil
	case <-reloadCh:
		slog.Info("configuration change detected, stopping services")
		cancelSched()
		gw.StopAll()
		slog.Info("draining connections before restart")
		time.Sleep(1 * time.Second)
		return nil
	}
}
