package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/Beastly713/mutafuzz/pkg/config"
	"github.com/Beastly713/mutafuzz/pkg/corpus"
	"github.com/Beastly713/mutafuzz/pkg/events"
	"github.com/Beastly713/mutafuzz/pkg/fuzzer"
	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/Beastly713/mutafuzz/pkg/monitor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	fuzzInstances int
	fuzzRuns      uint64
	fuzzSeed      uint64
	fuzzTarget    string
	fuzzBackend   string
	fuzzCorpusDir string
	fuzzSeedsDir  string
	fuzzSolutions string
	fuzzSyncDir   string
	fuzzTimeout   string
	fuzzMaxSize   int
	fuzzAdaptive  bool
	fuzzTUI       bool
)

var fuzzCmd = &cobra.Command{
	Use:   "fuzz [-- command args...]",
	Short: "Run a fuzzing campaign",
	Long: `Fuzz runs a campaign against a built-in target or an external command.
Flags override the config file. Arguments after -- are the target command;
"@@" in them is replaced by the path of a file holding the input, otherwise
the input is written to the command's stdin.

Examples:
  mutafuzz fuzz --target magic --runs 1000
  mutafuzz fuzz -j 4 --backend disk --corpus-dir out/corpus -- ./parser @@`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Flags over config
		applyFuzzFlags(cmd, cfg, args)
		if err := cfg.Validate(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		// 2. Run, with or without the live monitor
		mon := monitor.New(logger)
		c, err := newCampaign(cfg, logger, mon)
		if err != nil {
			return err
		}

		if cfg.Monitor.TUI {
			err = runWithTUI(ctx, mon, cfg.GetMonitorInterval(), c.Run)
		} else {
			err = runWithLog(ctx, mon, cfg.GetMonitorInterval(), c.Run)
		}
		if err != nil {
			return err
		}

		// 3. Summary
		printSummary(cmd.OutOrStdout(), mon.Snapshot())
		return nil
	},
}

func applyFuzzFlags(cmd *cobra.Command, cfg *config.Config, args []string) {
	flags := cmd.Flags()
	if flags.Changed("instances") {
		cfg.Campaign.Instances = fuzzInstances
	}
	if flags.Changed("runs") {
		cfg.Campaign.StageRuns = fuzzRuns
	}
	if flags.Changed("seed") {
		cfg.Campaign.Seed = fuzzSeed
	}
	if flags.Changed("target") {
		cfg.Target.Builtin = fuzzTarget
		cfg.Target.Command = nil
	}
	if flags.Changed("backend") {
		cfg.Corpus.Backend = fuzzBackend
	}
	if flags.Changed("corpus-dir") {
		cfg.Corpus.Dir = fuzzCorpusDir
	}
	if flags.Changed("seeds") {
		cfg.Seeds.Dir = fuzzSeedsDir
	}
	if flags.Changed("solutions") {
		cfg.Solutions.Dir = fuzzSolutions
	}
	if flags.Changed("sync-dir") {
		cfg.Sync.Dir = fuzzSyncDir
	}
	if flags.Changed("timeout") {
		cfg.Target.Timeout = fuzzTimeout
	}
	if flags.Changed("max-size") {
		cfg.Mutator.MaxSize = fuzzMaxSize
	}
	if flags.Changed("adaptive") {
		cfg.Mutator.Adaptive = fuzzAdaptive
	}
	if flags.Changed("tui") {
		cfg.Monitor.TUI = fuzzTUI
	}
	if len(args) > 0 {
		cfg.Target.Command = args
		cfg.Target.Builtin = ""
	}
}

func runWithLog(ctx context.Context, mon *monitor.Monitor, interval time.Duration, run func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mon.Run(ctx, interval)
	}()

	err := run(ctx)
	cancel()
	wg.Wait()
	return err
}

// campaignRunner runs every instance of a campaign.
type campaignRunner struct {
	cfg       *config.Config
	logger    *zap.Logger
	mon       *monitor.Monitor
	broker    *events.Broker
	solutions corpus.Corpus[*input.Bytes]
}

func newCampaign(cfg *config.Config, logger *zap.Logger, mon *monitor.Monitor) (*campaignRunner, error) {
	c := &campaignRunner{cfg: cfg, logger: logger, mon: mon}
	if cfg.Campaign.Instances > 1 {
		c.broker = events.NewBroker(0)
	}
	sol, err := openSolutions(cfg)
	if err != nil {
		return nil, err
	}
	c.solutions = sol
	return c, nil
}

func (c *campaignRunner) Run(ctx context.Context) error {
	c.logger.Info("campaign starting",
		zap.String("name", c.cfg.Campaign.Name),
		zap.Int("instances", c.cfg.Campaign.Instances),
		zap.String("backend", c.cfg.Corpus.Backend))

	return fuzzer.RunInstances(ctx, c.cfg.Campaign.Instances, func(ctx context.Context, id int) error {
		inst, err := c.newInstance(id)
		if err != nil {
			return err
		}
		defer inst.Close()
		return inst.Run(ctx)
	})
}

func printSummary(w io.Writer, s monitor.Snapshot) {
	fmt.Fprintf(w, "Executions: %d (%.0f/s)\n", s.Executions, s.ExecsPerSec)
	fmt.Fprintf(w, "Corpus:     %d\n", s.CorpusSize)
	fmt.Fprintf(w, "Solutions:  %d\n", s.Solutions)
	fmt.Fprintf(w, "Elapsed:    %s\n", s.Elapsed.Round(time.Millisecond))
}

func init() {
	rootCmd.AddCommand(fuzzCmd)

	fuzzCmd.Flags().IntVarP(&fuzzInstances, "instances", "j", 1, "Number of parallel instances")
	fuzzCmd.Flags().Uint64VarP(&fuzzRuns, "runs", "r", 0, "Stop each instance after this many stage runs (0: until interrupted)")
	fuzzCmd.Flags().Uint64Var(&fuzzSeed, "seed", 0, "Random seed (0: time based)")
	fuzzCmd.Flags().StringVarP(&fuzzTarget, "target", "t", "", "Built-in target (magic, tlv)")
	fuzzCmd.Flags().StringVar(&fuzzBackend, "backend", "", "Corpus backend: memory, disk or sqlite")
	fuzzCmd.Flags().StringVarP(&fuzzCorpusDir, "corpus-dir", "o", "", "Corpus directory for disk and sqlite backends")
	fuzzCmd.Flags().StringVarP(&fuzzSeedsDir, "seeds", "i", "", "Directory of initial inputs")
	fuzzCmd.Flags().StringVar(&fuzzSolutions, "solutions", "", "Directory for crashing and hanging inputs")
	fuzzCmd.Flags().StringVar(&fuzzSyncDir, "sync-dir", "", "Directory shared with other mutafuzz processes")
	fuzzCmd.Flags().StringVar(&fuzzTimeout, "timeout", "", "Per-execution timeout for command targets")
	fuzzCmd.Flags().IntVar(&fuzzMaxSize, "max-size", 0, "Largest input the mutator may produce")
	fuzzCmd.Flags().BoolVar(&fuzzAdaptive, "adaptive", false, "Weight mutations by how often they find new testcases")
	fuzzCmd.Flags().BoolVar(&fuzzTUI, "tui", false, "Show a live terminal monitor")
}
