package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/agent-trajectory/internal/agent"
	"github.com/tjfontaine/agent-trajectory/internal/config"
	"github.com/tjfontaine/agent-trajectory/internal/llm"
	"github.com/tjfontaine/agent-trajectory/internal/storage/file"
	"github.com/tjfontaine/agent-trajectory/internal/storage/sqlite"
	"github.com/tjfontaine/agent-trajectory/internal/telemetry"
	"github.com/tjfontaine/agent-trajectory/internal/tools"
	"github.com/tjfontaine/agent-trajectory/internal/trajectory"
)

var runCmd = &cobra.Command{
	Use:   "run <task>",
	Short: "Execute a single task and record its trajectory",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		env, err := setup(ctx)
		if err != nil {
			return err
		}
		defer env.shutdown()

		task := strings.Join(args, " ")
		result, err := env.runTask(ctx, task)
		if result != nil && result.TrajectoryTarget != "" {
			fmt.Printf("trajectory saved to %s\n", result.TrajectoryTarget)
		}
		if err != nil {
			return err
		}
		fmt.Println(result.FinalResult)
		if !result.Success {
			return fmt.Errorf("task did not complete")
		}
		return nil
	},
}

// runEnv holds the pieces shared by run and interactive: resolved config and
// a telemetry shutdown hook. Each task still gets its own session and agent.
type runEnv struct {
	cfg      *config.Config
	logger   *slog.Logger
	shutdown func()
}

func setup(ctx context.Context) (*runEnv, error) {
	logger := slog.Default()

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if maxSteps > 0 {
		cfg.MaxSteps = maxSteps
	}

	stopTracer, err := telemetry.Init("agent-trajectory", cfg.Telemetry.Enabled, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	return &runEnv{
		cfg:    cfg,
		logger: logger,
		shutdown: func() {
			if err := stopTracer(ctx); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		},
	}, nil
}

// runTask records one trajectory for one task. The result carries the
// trajectory target even when the run failed.
func (e *runEnv) runTask(ctx context.Context, task string) (*agent.Result, error) {
	provider, params, err := e.cfg.ProviderParams(providerName)
	if err != nil {
		return nil, err
	}
	if modelName != "" {
		params.Model = modelName
	}

	backend, err := e.newBackend()
	if err != nil {
		return nil, err
	}

	session, err := trajectory.Start(ctx, backend, task, provider, params.Model, e.cfg.MaxSteps,
		trajectory.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}

	toolset := []tools.Tool{
		tools.NewBashTool(0),
		tools.NewTaskDoneTool(),
	}

	client, err := llm.NewClient(provider, params, session, toolset, llm.WithLogger(e.logger))
	if err != nil {
		_ = session.Finalize(ctx, false, err.Error(), 0)
		return nil, err
	}

	a := agent.New(client, tools.NewExecutor(toolset), session, e.cfg.MaxSteps,
		agent.WithLogger(e.logger),
		agent.WithParallelToolCalls(params.ParallelToolCalls),
	)
	return a.Run(ctx, task)
}

func (e *runEnv) newBackend() (trajectory.DocumentStore, error) {
	path := trajectoryFile
	if path == "" {
		path = e.cfg.Trajectory.Path
	}

	switch e.cfg.Trajectory.Backend {
	case "sqlite":
		if path == "" {
			path = "trajectories.db"
		}
		return sqlite.New(path)
	case "file", "":
		if path == "" {
			path = trajectory.DefaultPath(".", time.Now())
		}
		return file.New(path)
	default:
		return nil, fmt.Errorf("unknown trajectory backend %q", e.cfg.Trajectory.Backend)
	}
}
