package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/grafana/pyroscope-go"
	"github.com/spf13/cobra"
	"github.com/yanun0323/logs"
	"golang.org/x/sync/errgroup"

	"github.com/VAnkata19/TraderAI/pkg/adapter"
	"github.com/VAnkata19/TraderAI/pkg/config"
	"github.com/VAnkata19/TraderAI/pkg/decision"
	"github.com/VAnkata19/TraderAI/pkg/scheduler"
	"github.com/VAnkata19/TraderAI/pkg/store"
)

var configFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "trader",
		Short: "LLM-driven stock trading bot",
		Long: `Trader evaluates each configured ticker on a fixed interval: it gathers
news, chart and portfolio context, asks an LLM for a BUY/SELL/HOLD decision,
gates that decision against the daily action budget and current holdings,
and places market orders through Alpaca or a paper broker.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default ~/.trader/config.yaml)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(onceCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(modelsCmd())

	if err := rootCmd.Execute(); err != nil {
		logs.Errorf("%v", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the trading loop with the dashboard server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if cfg.Server.PyroscopeAddress != "" {
				profiler, err := startProfiler(cfg.Server.PyroscopeAddress)
				if err != nil {
					return fmt.Errorf("pyroscope start failed: %w", err)
				}
				defer func() {
					_ = profiler.Stop()
				}()
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := a.scheduler()
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.hub.Run(gctx)
				return nil
			})
			g.Go(func() error {
				return a.server().ListenAndServe(gctx)
			})
			g.Go(func() error {
				return sched.Run(gctx)
			})
			return g.Wait()
		},
	}
}

func onceCmd() *cobra.Command {
	var tickers string

	cmd := &cobra.Command{
		Use:   "once",
		Short: "Run a single evaluation cycle and print the results",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if tickers != "" {
				cfg.Trading.Tickers = strings.Split(tickers, ",")
			}

			a, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			sched, err := a.scheduler()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results, err := sched.RunCycle(ctx)
			if results != nil {
				printResults(results, cfg.Trading.MaxActionsPerDay)
			}
			return err
		},
	}

	cmd.Flags().StringVar(&tickers, "tickers", "", "comma-separated tickers overriding the config")

	return cmd
}

func printResults(results []scheduler.SymbolResult, maxActions int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TICKER\tDECISION\tQTY\tCONFIDENCE\tEXECUTED\tACTIONS\tRESULT")
	for _, r := range results {
		ev := r.Evaluation
		if ev == nil {
			fmt.Fprintf(w, "%s\t-\t-\t-\t-\t-\terror: %v\n", r.Symbol, r.Err)
			continue
		}
		result := ev.OrderResult
		switch {
		case r.Err != nil:
			result = "error: " + r.Err.Error()
		case ev.Downgraded:
			result = ev.DowngradeReason
		case result == "":
			result = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%t\t%d/%s\t%s\n",
			ev.Symbol, ev.Decision, ev.Quantity, ev.Confidence, ev.Executed,
			ev.ActionsUsedToday, decision.BudgetLabel(maxActions), truncate(result, 80))
	}
	w.Flush()
}

func statusCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show today's action counters and recent decisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			a := &app{cfg: cfg}
			defer a.Close()
			journal, err := a.createJournal()
			if err != nil {
				return err
			}
			counts, err := store.NewActionCounter(cfg.Storage.DataDir).Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to load action counters: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TICKER\tACTIONS TODAY")
			for _, t := range cfg.Trading.Tickers {
				fmt.Fprintf(w, "%s\t%d/%s\n", t, counts[t], decision.BudgetLabel(cfg.Trading.MaxActionsPerDay))
			}
			if err := w.Flush(); err != nil {
				return err
			}

			records, err := journal.Recent(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to read decisions: %w", err)
			}
			fmt.Println()
			if len(records) == 0 {
				fmt.Println("No decisions recorded.")
				return nil
			}

			w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTICKER\tDECISION\tQTY\tEXECUTED\tREASONING")
			for _, r := range records {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%s\n",
					r.Timestamp.Local().Format("2006-01-02 15:04"), r.Symbol, r.Decision, r.Quantity, r.Executed, truncate(r.Reasoning, 60))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of recent decisions to show")

	return cmd
}

func evaluateCmd() *cobra.Command {
	var (
		quantity   int
		used       int
		maxActions int
		held       int
	)

	cmd := &cobra.Command{
		Use:   "evaluate [BUY|SELL|HOLD]",
		Short: "Check how a proposed action would be gated, without trading",
		Long: `Runs the decision evaluator offline. It applies the daily action budget,
the quantity floor and the SELL position cap exactly as the trading loop does.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			action, ok := decision.ParseAction(args[0])
			if !ok {
				action = decision.Action(strings.ToUpper(strings.TrimSpace(args[0])))
			}

			v := decision.Evaluate(action, quantity, used, maxActions, held)
			fmt.Printf("Action:     %s\n", v.Action)
			fmt.Printf("Quantity:   %d\n", v.Quantity)
			fmt.Printf("Proceed:    %t\n", v.Proceed())
			if v.Downgraded {
				fmt.Printf("Downgraded: %s\n", v.Reason)
			}
			if v.Floored {
				fmt.Println("Warning:    quantity below 1 was raised to 1")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&quantity, "qty", 1, "proposed quantity")
	cmd.Flags().IntVar(&used, "used", 0, "actions already used today")
	cmd.Flags().IntVar(&maxActions, "max", 5, "max actions per day (-1 for unlimited)")
	cmd.Flags().IntVar(&held, "held", 0, "shares currently held")

	return cmd
}

func modelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List LLM adapters, their readiness and the chain routes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			adapters, err := createAdapters(cfg)
			if err != nil {
				return err
			}
			ready := make(map[string]adapter.Adapter, len(adapters))
			for _, a := range adapters {
				ready[a.Name()] = a
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROVIDER\tMODELS\tSTATUS")
			for _, provider := range []string{"anthropic", "deepseek", "google", "openai", "mock"} {
				models := "-"
				status := "no key"
				if a, ok := ready[provider]; ok {
					models = strings.Join(a.Models(), ", ")
					status = "ready"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", provider, models, status)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			fmt.Println()
			w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "CHAIN\tADAPTER\tMODEL\tSTATUS")
			for _, chain := range []string{config.ChainNewsSummary, config.ChainChartSummary, config.ChainDecision} {
				route := cfg.Routing.Route(chain)
				status := "no key"
				if cfg.HasAdapter(route.Adapter) {
					status = "ready"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", chain, route.Adapter, route.Model, status)
			}
			return w.Flush()
		},
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func startProfiler(addr string) (*pyroscope.Profiler, error) {
	return pyroscope.Start(pyroscope.Config{
		ApplicationName: "trader",
		ServerAddress:   addr,
		Tags: map[string]string{
			"env": "local",
		},
		Logger: profilerLogger{},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	})
}

// profilerLogger routes pyroscope output to the process logger.
type profilerLogger struct{}

func (profilerLogger) Infof(format string, args ...interface{})  { logs.Infof(format, args...) }
func (profilerLogger) Debugf(format string, args ...interface{}) {}
func (profilerLogger) Errorf(format string, args ...interface{}) { logs.Errorf(format, args...) }

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
