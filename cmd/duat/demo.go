package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/duatlab/hourglass/combat"
	"github.com/duatlab/hourglass/config"
	"github.com/duatlab/hourglass/datarecording"
	"github.com/duatlab/hourglass/initiative"
	"github.com/duatlab/hourglass/monitoring"
	"github.com/duatlab/hourglass/sand"
	"github.com/duatlab/hourglass/scripting"
)

var demoFlags = struct {
	configPath  string
	rounds      int
	openBrowser bool
}{}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted demo duel with live monitoring.",
	RunE: func(_ *cobra.Command, _ []string) error {
		return runDemo()
	},
}

func init() {
	demoCmd.Flags().StringVar(&demoFlags.configPath, "config", "",
		"path to a TOML configuration file")
	demoCmd.Flags().IntVar(&demoFlags.rounds, "rounds", 30,
		"number of demo rounds to play")
	demoCmd.Flags().BoolVar(&demoFlags.openBrowser, "open", false,
		"open the monitor dashboard in a browser")

	rootCmd.AddCommand(demoCmd)
}

func runDemo() error {
	cfg, err := config.Load(demoFlags.configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := combat.NewOrchestrator().
		WithMaxDeltaClamp(cfg.Clock.MaxDeltaClamp).
		WithTimeScale(cfg.Clock.TimeScale).
		WithModifiers(sand.RegenModifiers{
			Desperation:     cfg.Modifiers.Desperation,
			Wounded:         cfg.Modifiers.Wounded,
			NearFullDamping: cfg.Modifiers.NearFullDamping,
			Blessing:        cfg.Modifiers.Blessing,
			HighFavor:       cfg.Modifiers.FavorHigh,
			LowFavor:        cfg.Modifiers.FavorLow,
		})

	orch.Scheduler().
		WithStarvationWarnThreshold(cfg.Scheduler.StarvationWarnThreshold)

	if err := registerHandlers(orch, cfg, logger); err != nil {
		return err
	}

	if cfg.Recording.Enabled {
		recorder := datarecording.New(cfg.Recording.DBPath)
		orch.AcceptHook(datarecording.NewCombatLog(recorder))
	}

	monitor := monitoring.NewMonitor().WithPortNumber(cfg.Monitor.Port)
	monitor.RegisterOrchestrator(orch)

	if cfg.Monitor.Enabled {
		go monitor.Feed().Run(ctx)
		monitor.Feed().StartSnapshotPoller(ctx, orch, 200*time.Millisecond)
		monitor.StartServer()

		if demoFlags.openBrowser && cfg.Monitor.Port > 1000 {
			url := fmt.Sprintf("http://localhost:%d", cfg.Monitor.Port)
			if err := browser.OpenURL(url); err != nil {
				logger.Warn("cannot open dashboard", zap.Error(err))
			}
		}
	}

	playDemo(ctx, orch, monitor, cfg, logger)

	atexit.Exit(0)

	return nil
}

func registerHandlers(
	orch *combat.Orchestrator,
	cfg *config.Config,
	logger *zap.Logger,
) error {
	fallback := combat.EffectHandlerFunc(func(a *initiative.Action) error {
		logger.Info("action resolved",
			zap.String("actor", a.ActorID),
			zap.String("kind", a.Kind.String()),
			zap.Int("cost", a.Cost))

		return nil
	})

	kinds := []initiative.Kind{
		initiative.KindStandard,
		initiative.KindEndTurn,
		initiative.KindWithdraw,
		initiative.KindReaction,
	}
	for _, kind := range kinds {
		orch.RegisterEffectHandler(kind, fallback)
	}

	if _, err := os.Stat(cfg.Scripting.ScriptsDir); err == nil {
		engine, err := scripting.NewEngine(cfg.Scripting.ScriptsDir, logger)
		if err != nil {
			return err
		}

		atexit.Register(engine.Close)

		for _, kind := range kinds {
			orch.RegisterEffectHandler(kind, engine)
		}

		logger.Info("effect scripts loaded",
			zap.String("dir", cfg.Scripting.ScriptsDir))
	}

	return nil
}

func playDemo(
	ctx context.Context,
	orch *combat.Orchestrator,
	monitor *monitoring.Monitor,
	cfg *config.Config,
	logger *zap.Logger,
) {
	actors := []string{"pharaoh", "serpent"}

	participants := make([]combat.Participant, 0, len(actors))
	for _, id := range actors {
		participants = append(participants, combat.Participant{
			ID:           id,
			Capacity:     cfg.Pool.Capacity,
			StartingSand: cfg.Pool.StartingSand,
			RegenRate:    cfg.Pool.RegenRate,
		})
	}
	orch.Start(participants)

	bar := monitor.CreateProgressBar("demo rounds", uint64(demoFlags.rounds))
	defer monitor.CompleteProgressBar(bar)

	health := map[string]float64{"pharaoh": 1.0, "serpent": 0.35}

	frame := time.NewTicker(time.Second / 60)
	defer frame.Stop()

	round := 0
	nextProposal := time.Now()

	for round < demoFlags.rounds {
		select {
		case <-ctx.Done():
			orch.End("")
			logger.Info("demo interrupted")

			return
		case <-frame.C:
		}

		if time.Now().After(nextProposal) {
			actor := actors[rand.Intn(len(actors))]
			cost := 1 + rand.Intn(3)

			if _, err := orch.Propose(
				actor, cost, rand.Intn(10), initiative.KindStandard,
			); err != nil {
				logger.Warn("proposal rejected", zap.Error(err))
			}

			nextProposal = time.Now().Add(
				time.Duration(500+rand.Intn(1500)) * time.Millisecond)
		}

		contexts := map[string]sand.RegenContext{
			"pharaoh": {HealthFraction: health["pharaoh"]},
			"serpent": {HealthFraction: health["serpent"]},
		}

		resolutions := orch.Update(contexts)
		for _, res := range resolutions {
			logger.Info("round settled",
				zap.Int("round", round),
				zap.String("actor", res.Action.ActorID),
				zap.String("outcome", res.Outcome.String()))

			round++
			bar.IncrementFinished(1)
		}
	}

	orch.End("pharaoh")
	logger.Info("demo finished", zap.String("winner", orch.Winner()))
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
