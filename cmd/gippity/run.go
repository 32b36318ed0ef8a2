package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"autogippity/pkg/agent"
	"autogippity/pkg/agent/llm"
	"autogippity/pkg/architect"
	"autogippity/pkg/artifacts"
	"autogippity/pkg/config"
	"autogippity/pkg/console"
	"autogippity/pkg/eventlog"
	"autogippity/pkg/factsheet"
	"autogippity/pkg/logx"
	"autogippity/pkg/metrics"
	"autogippity/pkg/persistence"
	"autogippity/pkg/probe"
	"autogippity/pkg/proto"
	"autogippity/pkg/tracing"
	"autogippity/pkg/utils"
)

// runDeps are the collaborators a run needs from outside the process.
type runDeps struct {
	newClient func(cfg *config.Config) (llm.LLMClient, error)
	prober    probe.Prober // nil builds an HTTP prober from config
	in        io.Reader
	out       io.Writer
	errOut    io.Writer
}

func defaultDeps(cmd *cobra.Command) runDeps {
	return runDeps{
		newClient: func(cfg *config.Config) (llm.LLMClient, error) {
			return agent.NewLLMClientFactory(cfg).CreateClient()
		},
		in:     cmd.InOrStdin(),
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
	}
}

type runOptions struct {
	resume     string
	metricsOut string
	noHistory  bool
}

func runCmd(global *globalOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [description...]",
		Short: "Scope a website project and validate its external data sources",
		Long: "Runs the solutions architect over a project description. Without arguments\n" +
			"the description is read interactively. --resume continues a failed run from\n" +
			"the state it stopped in.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			if err := config.UnlockSecrets(global.projectDir, os.Getenv(config.EnvPassword)); err != nil {
				return fmt.Errorf("failed to unlock secrets: %w", err)
			}
			if opts.metricsOut != "" {
				cfg.Metrics.Enabled = true
				cfg.Metrics.Output = opts.metricsOut
			}
			return executeRun(cmd.Context(), cfg, defaultDeps(cmd), strings.Join(args, " "), opts)
		},
	}
	cmd.Flags().StringVar(&opts.resume, "resume", "", "continue the failed run with this ID")
	cmd.Flags().BoolVar(&opts.noHistory, "no-history", false, "do not record the run in the history database")
	cmd.Flags().StringVar(&opts.metricsOut, "metrics-out", "", "write Prometheus metrics to this file after the run")
	return cmd
}

// executeRun performs one pipeline run and prints the resulting fact sheet.
func executeRun(ctx context.Context, cfg *config.Config, deps runDeps, description string, opts *runOptions) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	printer := console.NewPrinter(deps.out)
	if opts.resume != "" && opts.noHistory {
		return errors.New("--resume needs the history database")
	}

	description = strings.TrimSpace(description)
	if description == "" && opts.resume == "" {
		description, err = console.NewPrompter(deps.in, printer).Ask("What webserver are we building today? ")
		if err != nil {
			return err
		}
		if description == "" {
			return errors.New("a project description is required")
		}
	}

	shutdown, err := tracing.Init(ctx, tracing.Config{Enabled: cfg.Tracing.Enabled, ServiceName: "gippity", Writer: deps.errOut})
	if err != nil {
		return err
	}
	defer func() {
		if serr := shutdown(context.Background()); serr != nil {
			logx.Warnf("tracing shutdown: %v", serr)
		}
	}()

	registry := prometheus.NewRegistry()
	var recorder metrics.Recorder = metrics.Nop()
	if cfg.Metrics.Enabled {
		recorder = metrics.NewPrometheusRecorder(registry)
		defer func() {
			if werr := writeMetrics(cfg.Metrics.Output, registry, deps.errOut); werr != nil {
				logx.Warnf("metrics: %v", werr)
			}
		}()
	}

	client, err := deps.newClient(cfg)
	if err != nil {
		return err
	}

	tokens, terr := utils.NewTokenCounter(client.GetModelName())
	if terr != nil {
		logx.Warnf("token counting disabled: %v", terr)
	}

	prober := deps.prober
	if prober == nil {
		prober = probe.New(cfg.Probe.Timeout, probe.WithRecorder(recorder))
	}

	var (
		notifier proto.Notifier = printer
		store    *persistence.Store
		run      *persistence.Run
		fs       *factsheet.FactSheet
	)
	if !opts.noHistory {
		store, err = persistence.Open(cfg.Storage.DBPath)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		if opts.resume != "" {
			if run, err = resumableRun(ctx, store, opts.resume); err != nil {
				return err
			}
			fs = run.FactSheet
			printer.Println("Resuming run %s from %s", run.ID, run.FinalState)
		}
	}
	if run == nil {
		fs = factsheet.New(description)
		run = persistence.NewRun(fs, client.GetModelName())
	}

	if store != nil {
		if err := store.SaveRun(ctx, run); err != nil {
			return err
		}

		events, err := eventlog.NewWriter(cfg.Paths.EventLogDir)
		if err != nil {
			logx.Warnf("event log disabled: %v", err)
		} else {
			defer func() { _ = events.Close() }()
			notifier = proto.Tee(printer, events.ForRun(run.ID))
		}
	}

	archOpts := []architect.Option{
		architect.WithID("architect-" + run.ID[:8]),
		architect.WithNotifier(notifier),
		architect.WithProber(prober),
		architect.WithProbeConcurrency(cfg.Probe.Concurrency),
		architect.WithRecorder(recorder),
		architect.WithTaskOptions(
			agent.WithTokenCounter(tokens),
			agent.WithMaxTokens(cfg.Model.MaxTokens),
			agent.WithTemperature(cfg.Model.Temperature),
		),
	}
	if store != nil {
		archOpts = append(archOpts, architect.WithStateStore(store))
	}
	arch := architect.New(client, archOpts...)
	if err := arch.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to restore architect state: %w", err)
	}

	runErr := arch.Execute(ctx, fs)
	run.Finish(arch.State(), runErr)

	if store != nil {
		if err := store.SaveRun(ctx, run); err != nil {
			logx.Warnf("failed to record run %s: %v", run.ID, err)
		}
		if err := store.SaveTransitions(ctx, run.ID, arch.Transitions()); err != nil {
			logx.Warnf("failed to record transitions of run %s: %v", run.ID, err)
		}
	}
	if err := artifacts.New(cfg.Paths).SaveFactSheet(fs); err != nil {
		logx.Warnf("%v", err)
	}

	if runErr != nil {
		printer.Println("run %s failed in %s: %v", run.ID, arch.State(), runErr)
		return runErr
	}

	b, err := json.MarshalIndent(fs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode fact sheet: %w", err)
	}
	printer.Println("%s", b)
	return nil
}

// resumableRun loads a failed or interrupted run and marks it running again.
func resumableRun(ctx context.Context, store *persistence.Store, id string) (*persistence.Run, error) {
	run, err := store.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status == persistence.RunStatusFinished {
		return nil, fmt.Errorf("run %s already finished", run.ID)
	}
	if run.FactSheet == nil {
		run.FactSheet = factsheet.New(run.Description)
	}
	run.Status = persistence.RunStatusRunning
	run.FinishedAt = nil
	run.Error = ""
	return run, nil
}

func writeMetrics(path string, g prometheus.Gatherer, fallback io.Writer) error {
	if path == "" {
		return metrics.WriteText(fallback, g)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create metrics file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return metrics.WriteText(f, g)
}
