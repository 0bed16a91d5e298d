package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"browseragent/internal/browseragent/actions"
	"browseragent/internal/browseragent/browser"
	browseragentconfig "browseragent/internal/browseragent/config"
	"browseragent/internal/browseragent/eventbus"
	"browseragent/internal/browseragent/ledger"
	"browseragent/internal/browseragent/obslog"
	"browseragent/internal/browseragent/pipeline"
	"browseragent/internal/browseragent/registry"
	"browseragent/internal/browseragent/taskmanager"
)

var (
	runURL      string
	runHeadless bool
	runMaxSteps int
	runProvider string
	runGrace    time.Duration
)

const systemPrompt = `You are a browsing agent. You observe a page's accessibility
tree and screenshot, and you act on it through a fixed catalog of actions: one
index-bearing interaction per DOM element, plus navigation, scrolling, and
content extraction. Narrate your reasoning in current_state before acting, and
call "done" once the task's answer is in hand.`

var runCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "Run a single task to completion",
	Args:  cobra.ExactArgs(1),
	RunE:  runTask,
}

func runTask(cmd *cobra.Command, args []string) error {
	instruction := args[0]

	cfg := browseragentconfig.Default()
	if cfgPath != "" {
		loaded, err := browseragentconfig.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if runProvider != "" {
		cfg.Provider.Name = runProvider
	}
	browserCfg := cfg.BrowserConfig()
	browserCfg.Headless = runHeadless
	taskOpts := cfg.TaskOptions()
	if runMaxSteps > 0 {
		taskOpts.MaxSteps = runMaxSteps
	}
	taskOpts.CancellationGrace = runGrace

	model, err := cfg.ResolveChatModel()
	if err != nil {
		return fmt.Errorf("resolve chat model: %w", err)
	}

	log := obslog.Default()
	log.SetDebug(debug)
	bus := eventbus.New(log)
	unsubscribe := bus.Subscribe(logEvent)
	defer unsubscribe()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mgr := browser.NewManager(browserCfg, log)
	if err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer func() {
		if err := mgr.Shutdown(); err != nil {
			logger.Sugar().Warnw("browser shutdown failed", "error", err)
		}
	}()

	sess, err := mgr.NewSession(ctx, runURL)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer sess.Close()

	reg := registry.New()
	actions.RegisterDefaults(reg, sess, actions.NoPolicy())

	led := ledger.New()
	led.InitTaskMessages(systemPrompt, instruction)

	pl := &pipeline.Pipeline{
		Navigator: &pipeline.Navigator{
			Model:    model,
			Browser:  sess,
			Registry: reg,
			Ledger:   led,
			Bus:      bus,
			Log:      log,
			Options:  taskOpts,
		},
		Planner:   &pipeline.Planner{Model: model, Ledger: led, Bus: bus, Options: taskOpts},
		Validator: &pipeline.Validator{Model: model, Ledger: led, Bus: bus},
		Bus:       bus,
		Options:   taskOpts,
	}

	tasks := taskmanager.New(bus, pl.Run)
	task := tasks.Submit(ctx, instruction)
	result := task.Result

	switch result.Status {
	case pipeline.StatusOK:
		fmt.Println(result.Answer)
		return nil
	case pipeline.StatusCancelled:
		return fmt.Errorf("task cancelled: %s", result.Reason)
	default:
		return fmt.Errorf("task did not complete: %s (%s)", result.Status, result.Reason)
	}
}

func logEvent(ev eventbus.Event) {
	fields := []any{"actor", ev.Actor, "state", ev.State}
	if ev.Type != "" {
		fields = append(fields, "type", ev.Type)
	}
	if ev.Data.Details != "" {
		fields = append(fields, "details", ev.Data.Details)
	}
	if debug {
		logger.Sugar().Debugw(string(ev.State), fields...)
	} else {
		logger.Sugar().Infow(string(ev.State), fields...)
	}
}
