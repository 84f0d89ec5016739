// Command lucid-agent runs the clinic automation agent service: a governed
// computer-use loop that drives EZBIS over a remote screen channel.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"lucid/internal/agent"
	"lucid/internal/audit"
	"lucid/internal/config"
	"lucid/internal/llm"
	"lucid/internal/logging"
	"lucid/internal/metrics"
	"lucid/internal/patients"
	"lucid/internal/runner"
	"lucid/internal/screen"
	"lucid/internal/server"
	"lucid/internal/session"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

func main() {
	root := &cobra.Command{
		Use:   "lucid-agent",
		Short: "Governed computer-use agent for clinic desktop automation",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), runCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("Error: "+err.Error()))
		os.Exit(1)
	}
}

type services struct {
	cfg      *config.Config
	runner   *runner.Runner
	store    *session.FileStore
	frames   *audit.FrameLogger
	registry *prometheus.Registry
}

func buildServices() (*services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	store, err := session.NewFileStore(cfg.SessionsDir)
	if err != nil {
		return nil, err
	}
	frames, err := audit.NewFrameLogger(cfg.FramesDir)
	if err != nil {
		return nil, err
	}
	directory, err := patients.NewFileDirectory(cfg.PatientsDB)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	newClient := func() (llm.Client, error) {
		if cfg.MockMode || cfg.APIKey == "" {
			return llm.NewScriptedClient(llm.MockAgentScript()...), nil
		}
		return llm.NewAnthropicClient(cfg.Model, llm.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
		})
	}
	newController := func() (screen.Controller, error) {
		return screen.New(cfg.MockMode, screen.Options{
			Host:        cfg.ScreenHost,
			Port:        cfg.ScreenPort,
			Tool:        cfg.ScreenTool,
			CallTimeout: cfg.ScreenCallSeconds,
		})
	}

	r := runner.New(runner.Deps{
		Store:         store,
		Patients:      directory,
		Frames:        frames,
		NewClient:     newClient,
		NewController: newController,
		Loop: agent.LoopConfig{
			MaxIterations: cfg.MaxIterations,
			MaxDuration:   cfg.MaxDuration(),
			SettleDelay:   cfg.SettleDelay(),
		},
		Metrics: m,
	})

	return &services{cfg: cfg, runner: r, store: store, frames: frames, registry: registry}, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the agent HTTP service",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices()
			if err != nil {
				return err
			}

			logger := logging.NewComponentLogger("Main")
			logger.Info("Starting lucid-agent (mock_mode=%v, listen=%s)", svc.cfg.MockMode, svc.cfg.ListenAddr)
			fmt.Printf("%s lucid-agent listening on %s (mock_mode=%v)\n", green("▶"), svc.cfg.ListenAddr, svc.cfg.MockMode)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := server.New(svc.runner, svc.store, svc.frames, svc.cfg, svc.registry)
			if err := srv.Run(ctx); err != nil {
				return err
			}
			svc.runner.Wait()
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	var (
		paramsJSON string
		confirmed  bool
	)

	cmd := &cobra.Command{
		Use:   "run <task-kind>",
		Short: "Submit one task and wait for it to finish",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildServices()
			if err != nil {
				return err
			}

			params := map[string]any{}
			if paramsJSON != "" {
				if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
					return fmt.Errorf("invalid --params JSON: %w", err)
				}
			}

			sess, err := svc.runner.Submit(args[0], params, confirmed)
			if err != nil {
				return err
			}
			fmt.Printf("%s session %s (%s)\n", green("submitted"), sess.ID, sess.Status)

			if sess.Status == session.StatusAwaitingConfirmation {
				fmt.Println(yellow("awaiting confirmation; re-run with --confirmed or confirm via the API"))
				return nil
			}

			for {
				time.Sleep(500 * time.Millisecond)
				current, err := svc.store.Get(sess.ID)
				if err != nil {
					return err
				}
				if current.Status.Terminal() {
					printOutcome(current)
					return nil
				}
			}
		},
	}

	cmd.Flags().StringVar(&paramsJSON, "params", "", "task parameters as a JSON object")
	cmd.Flags().BoolVar(&confirmed, "confirmed", false, "confirm write operations up front")
	return cmd
}

func printOutcome(sess *session.Session) {
	label := green(string(sess.Status))
	switch sess.Status {
	case session.StatusFailed:
		label = red(string(sess.Status))
	case session.StatusPartial, session.StatusTimeout, session.StatusCancelled:
		label = yellow(string(sess.Status))
	}
	fmt.Printf("%s iterations=%d frames=%d\n", label, sess.IterationsUsed, sess.FrameCount)
	if sess.ResultSummary != "" {
		fmt.Println(gray(sess.ResultSummary))
	}
	if sess.ErrorLog != "" {
		fmt.Println(red(sess.ErrorLog))
	}
}
