package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/XiaoConstantine/ramanujan-go/pkg/archive"
	"github.com/XiaoConstantine/ramanujan-go/pkg/config"
	"github.com/XiaoConstantine/ramanujan-go/pkg/logging"
	"github.com/XiaoConstantine/ramanujan-go/pkg/numeric"
	"github.com/XiaoConstantine/ramanujan-go/pkg/oracle"
	"github.com/XiaoConstantine/ramanujan-go/pkg/swarm"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "ramanujan",
	Short: "Evolutionary search for elegant closed-form constant approximations",
	Long: `ramanujan runs an evolutionary swarm that searches for closed-form
expressions approximating mathematical constants (pi, e, phi, gamma, zeta3)
to hundreds of decimal digits, ranking candidates by elegance: numerical
error weighted by structural complexity. Expressions whose error falls below
the verification threshold are recorded as discoveries and checked against
OEIS for novelty.`,
	Version: "0.1.0",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (DEBUG, INFO, WARN, ERROR)")

	rootCmd.AddCommand(runCmd(), verifyCmd(), constantsCmd(), historyCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	return config.Load(configPath)
}

func setupLogging(cfg *config.Config) error {
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	outputs := []logging.Output{logging.NewConsoleOutput(true, logging.WithColor(true))}
	if cfg.Logging.File != "" {
		fileOut, err := logging.NewFileOutput(cfg.Logging.File)
		if err != nil {
			return err
		}
		outputs = append(outputs, fileOut)
	}
	logging.SetLogger(logging.NewLogger(logging.Config{
		Severity: logging.ParseSeverity(level),
		Outputs:  outputs,
	}))
	return nil
}

// buildOrchestrator assembles the full engine from configuration: registry,
// scorer, grammar producers, optional LLM producer, oracle and archive.
func buildOrchestrator(cfg *config.Config) (*swarm.Orchestrator, *archive.SQLiteArchive, error) {
	reg := numeric.NewRegistry(cfg.Search.PrecisionDigits)
	scorer := swarm.NewScorer(numeric.NewEvaluator(reg), cfg.Search.ComplexityPenalty)
	grammar := swarm.NewGrammar(0)
	generator := swarm.NewGenerator(scorer, grammar, cfg.Search.MutateParents, cfg.Search.CrossoverParents)

	orch, err := swarm.NewOrchestrator(scorer, generator, swarm.Options{
		PopulationSize:  cfg.Search.PopulationSize,
		GenePoolSize:    cfg.Search.GenePoolSize,
		VerifyThreshold: cfg.Search.VerifyThreshold,
		MaxConcurrency:  cfg.Swarm.MaxConcurrency,
		GenerationPause: cfg.Search.GenerationPause,
	})
	if err != nil {
		return nil, nil, err
	}

	batch := cfg.Swarm.ExpressionsPerProducer
	for i := 0; i < cfg.Swarm.Explorers; i++ {
		orch.RegisterProducer(swarm.NewStrategyProducer(swarm.StrategyExplorer, grammar, batch))
	}
	for i := 0; i < cfg.Swarm.Mutators; i++ {
		orch.RegisterProducer(swarm.NewStrategyProducer(swarm.StrategyMutator, grammar, batch))
	}
	for i := 0; i < cfg.Swarm.Hybrids; i++ {
		orch.RegisterProducer(swarm.NewStrategyProducer(swarm.StrategyHybrid, grammar, batch))
	}

	if cfg.LLM.Enabled {
		apiKey := cfg.LLM.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		llm, err := swarm.NewLLMProducer(swarm.LLMProducerConfig{
			APIKey:      apiKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Batch:       batch,
		}, grammar)
		if err != nil {
			return nil, nil, err
		}
		orch.RegisterProducer(llm)
	}

	orch.SetOracle(oracle.NewOEISClient())

	var store *archive.SQLiteArchive
	if cfg.Archive.Path != "" {
		store, err = archive.NewSQLiteArchive(cfg.Archive.Path)
		if err != nil {
			return nil, nil, err
		}
		orch.SetSink(store)
	}
	return orch, store, nil
}

func runCmd() *cobra.Command {
	var (
		targetName  string
		generations int
		exportJSON  string
		exportPq    string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a discovery session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := setupLogging(cfg); err != nil {
				return err
			}
			if generations == 0 {
				generations = cfg.Search.MaxGenerations
			}

			orch, store, err := buildOrchestrator(cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			orch.Subscribe(printEvent)

			ctx := context.Background()
			sess, err := orch.Start(ctx, targetName, generations)
			if err != nil {
				return err
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				fmt.Fprintln(os.Stderr, "\nstopping after the current generation...")
				sess.Stop()
			}()

			if err := sess.Wait(); err != nil {
				return err
			}
			signal.Stop(sigCh)

			record := orch.Export(sess)
			printSummary(record)
			if exportJSON != "" {
				if err := archive.ExportJSONFile(exportJSON, record); err != nil {
					return err
				}
				fmt.Printf("wrote %s\n", exportJSON)
			}
			if exportPq != "" {
				if err := archive.ExportParquetFile(exportPq, record); err != nil {
					return err
				}
				fmt.Printf("wrote %s\n", exportPq)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetName, "target", "t", "pi", "constant to approximate (pi, e, phi, gamma, zeta3)")
	cmd.Flags().IntVarP(&generations, "generations", "g", 0, "generation budget (0 uses the configured default)")
	cmd.Flags().StringVar(&exportJSON, "export", "", "write session results as JSON to this path")
	cmd.Flags().StringVar(&exportPq, "parquet", "", "write discoveries as Parquet to this path")
	return cmd
}

func verifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <expression>",
		Short: "Evaluate an expression and check OEIS for known matches",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := setupLogging(cfg); err != nil {
				return err
			}
			orch, store, err := buildOrchestrator(cfg)
			if err != nil {
				return err
			}
			if store != nil {
				defer store.Close()
			}

			matches, err := orch.Verify(context.Background(), args[0])
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Println("no known matches; possibly novel")
				return nil
			}
			for _, m := range matches {
				fmt.Printf("%-10s %.2f  %s\n", m.ID, m.Confidence, m.Name)
			}
			return nil
		},
	}
	return cmd
}

func constantsCmd() *cobra.Command {
	var digits int
	cmd := &cobra.Command{
		Use:   "constants",
		Short: "List the supported target constants",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := numeric.NewRegistry(digits)
			for _, name := range reg.Names() {
				value, _ := reg.Lookup(name)
				fmt.Printf("%-7s %s\n", name, value.Text('g', digits))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&digits, "digits", 50, "decimal digits to display")
	return cmd
}

func historyCmd() *cobra.Command {
	var (
		dbPath string
		target string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List archived discoveries",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := archive.NewSQLiteArchive(dbPath)
			if err != nil {
				return err
			}
			defer store.Close()

			discoveries, err := store.ListDiscoveries(context.Background(), target)
			if err != nil {
				return err
			}
			if len(discoveries) == 0 {
				fmt.Println("no discoveries archived")
				return nil
			}
			for _, d := range discoveries {
				fmt.Printf("gen %-4d err %-24s %s\n", d.Generation, d.Error, d.Expression)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "discoveries.db", "SQLite archive path")
	cmd.Flags().StringVar(&target, "target", "", "filter by target constant")
	return cmd
}

func printEvent(ev swarm.Event) {
	switch ev.Type {
	case swarm.EventGenerationComplete:
		s := ev.Summary
		fmt.Printf("gen %-4d evaluated %-5d pool %-3d", s.Generation, s.TotalEvaluated, s.PoolSize)
		if len(s.BestCandidates) > 0 {
			best := s.BestCandidates[0]
			fmt.Printf("  best %s (err %s)", best.Expression, best.Error)
		}
		fmt.Println()
		for _, d := range s.NewDiscoveries {
			fmt.Printf("  ** discovery: %s (err %s)\n", d.Expression, d.Error)
		}
	case swarm.EventSessionError:
		fmt.Fprintf(os.Stderr, "session error: %v\n", ev.Err)
	case swarm.EventSessionStopped:
		fmt.Println("session stopped")
	}
}

func printSummary(record *swarm.ExportRecord) {
	fmt.Printf("\ntarget %s: %d generations, %d expressions evaluated, %d discoveries\n",
		record.Target, record.Generations, record.Evaluated, len(record.Discoveries))
	for _, d := range record.Discoveries {
		novelty := "unverified"
		if len(d.Novelty) > 0 {
			ids := make([]string, 0, len(d.Novelty))
			for _, m := range d.Novelty {
				ids = append(ids, m.ID)
			}
			novelty = "known: " + strings.Join(ids, ", ")
		}
		fmt.Printf("  %s  (gen %d, err %s, %s)\n", d.Expression, d.Generation, d.Error, novelty)
	}
}
