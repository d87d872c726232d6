package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Beastly713/mutafuzz/pkg/config"
	"github.com/Beastly713/mutafuzz/pkg/corpus"
	"github.com/Beastly713/mutafuzz/pkg/coverage"
	"github.com/Beastly713/mutafuzz/pkg/events"
	"github.com/Beastly713/mutafuzz/pkg/executor"
	"github.com/Beastly713/mutafuzz/pkg/feedback"
	"github.com/Beastly713/mutafuzz/pkg/fuzzer"
	"github.com/Beastly713/mutafuzz/pkg/input"
	"github.com/Beastly713/mutafuzz/pkg/mutator"
	"github.com/Beastly713/mutafuzz/pkg/rng"
	"github.com/Beastly713/mutafuzz/pkg/stage"
	"github.com/Beastly713/mutafuzz/pkg/state"
	"github.com/Beastly713/mutafuzz/pkg/targets"
	"go.uber.org/zap"
)

var codec = input.BytesCodec{}

// instance is one fuzzing loop with its own corpus, target and rng.
type instance struct {
	name    string
	logger  *zap.Logger
	havoc   *mutator.Havoc
	fz      *fuzzer.Fuzzer[*input.Bytes]
	st      *state.Std[*input.Bytes]
	r       rng.Rand
	em      events.Manager
	src     events.Source
	closers []io.Closer
}

func (c *campaignRunner) newInstance(id int) (*instance, error) {
	name := fmt.Sprintf("%s-%d", c.cfg.Campaign.Name, id)
	logger := c.logger.With(zap.String("instance", name))
	inst := &instance{name: name, logger: logger}
	if err := c.buildInstance(inst, id, logger); err != nil {
		inst.Close()
		return nil, err
	}
	return inst, nil
}

func (c *campaignRunner) buildInstance(inst *instance, id int, logger *zap.Logger) error {
	name := inst.name

	// 1. Corpus
	corp, closer, err := openCorpus(c.cfg, name)
	if err != nil {
		return err
	}
	if closer != nil {
		inst.closers = append(inst.closers, closer)
	}

	// 2. Target
	exec, fb, objective, err := newTarget(c.cfg, logger)
	if err != nil {
		return err
	}

	// 3. Event plumbing; the broker goes last so a full peer inbox does not
	// hide the event from the others
	managers := events.Multi{events.NewLogger(logger, name), c.mon}
	var sources events.Sources
	if c.cfg.Sync.Dir != "" {
		sd, err := events.NewSyncDir[*input.Bytes](c.cfg.Sync.Dir, name, codec, c.cfg.Corpus.Compress, logger)
		if err != nil {
			return err
		}
		w, err := sd.Watch()
		if err != nil {
			return err
		}
		inst.closers = append(inst.closers, w)
		managers = append(managers, sd)
		sources = append(sources, w)
	}
	if c.broker != nil {
		client := c.broker.Connect(name)
		managers = append(managers, client)
		sources = append(sources, client)
	}
	inst.em = managers
	if len(sources) > 0 {
		inst.src = sources
	}

	// 4. State and seeds
	inst.st, err = state.New(state.Options[*input.Bytes]{
		Executor:  exec,
		Feedback:  fb,
		Objective: objective,
		Corpus:    corp,
		Solutions: c.solutions,
		Events:    managers,
		Instance:  name,
		Logger:    logger,
	})
	if err != nil {
		return err
	}
	if err := seedCorpus(c.cfg, inst.st, logger); err != nil {
		return err
	}

	// 5. Stage and loop
	inst.havoc = mutator.NewHavoc(mutator.HavocOptions{
		MaxSize:     c.cfg.Mutator.MaxSize,
		MaxStackPow: c.cfg.Mutator.MaxStackPow,
		Adaptive:    c.cfg.Mutator.Adaptive,
		Logger:      logger,
	})
	inst.fz = fuzzer.New(newScheduler(c.cfg), fuzzer.Options{
		Instance:      name,
		StageRuns:     c.cfg.Campaign.StageRuns,
		StatsInterval: c.cfg.GetMonitorInterval(),
		Logger:        c.logger,
	}, stage.Stage[*input.Bytes](stage.NewStdMutationalStage[*input.Bytes](inst.havoc)))

	seed := c.cfg.Campaign.Seed
	if seed != 0 {
		seed += uint64(id)
	}
	r := rng.New(seed)
	logger.Debug("instance ready", zap.Uint64("seed", r.Seed()), zap.Int("corpus", corp.Count()))
	inst.r = r
	return nil
}

func (i *instance) Run(ctx context.Context) error {
	err := i.fz.Loop(ctx, i.r, i.st, i.em, i.src)
	for _, s := range i.havoc.Stats() {
		i.logger.Debug("mutation op",
			zap.String("op", s.Name),
			zap.Uint64("uses", s.Uses),
			zap.Uint64("finds", s.Finds))
	}
	return err
}

func (i *instance) Close() error {
	for _, c := range i.closers {
		c.Close()
	}
	return nil
}

func openCorpus(cfg *config.Config, name string) (corpus.Corpus[*input.Bytes], io.Closer, error) {
	switch cfg.Corpus.Backend {
	case "disk":
		c, err := corpus.NewOnDisk[*input.Bytes](filepath.Join(cfg.Corpus.Dir, name), codec, corpus.OnDiskOptions{
			Compress:     cfg.Corpus.Compress,
			KeepInMemory: cfg.Corpus.KeepInMemory,
			Instance:     name,
		})
		return c, nil, err
	case "sqlite":
		if err := os.MkdirAll(cfg.Corpus.Dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create corpus directory: %w", err)
		}
		c, err := corpus.NewSQLite[*input.Bytes](filepath.Join(cfg.Corpus.Dir, name+".db"), codec, cfg.Corpus.KeepInMemory)
		if err != nil {
			return nil, nil, err
		}
		return c, c, nil
	default:
		return corpus.NewMemory[*input.Bytes](), nil, nil
	}
}

func openSolutions(cfg *config.Config) (corpus.Corpus[*input.Bytes], error) {
	if cfg.Solutions.Dir == "" {
		return corpus.NewMemory[*input.Bytes](), nil
	}
	return corpus.NewOnDisk[*input.Bytes](cfg.Solutions.Dir, codec, corpus.OnDiskOptions{
		Instance:    cfg.Campaign.Name,
		WriteInputs: true,
	})
}

func newTarget(cfg *config.Config, logger *zap.Logger) (executor.Executor[*input.Bytes], feedback.Feedback[*input.Bytes], feedback.Feedback[*input.Bytes], error) {
	objective := feedback.Any[*input.Bytes]{
		feedback.NewCrash[*input.Bytes](),
		feedback.NewTimeout[*input.Bytes](),
	}
	if len(cfg.Target.Command) > 0 {
		cmd, err := executor.NewCommand(cfg.Target.Command, cfg.GetTimeout(), logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return cmd, feedback.NewNovelty(cmd), objective, nil
	}

	harness, err := targets.Lookup(cfg.Target.Builtin)
	if err != nil {
		return nil, nil, nil, err
	}
	cov := coverage.NewMap(cfg.Target.MapSize)
	return executor.NewInProcess(harness, cov, logger), feedback.NewMaxMap[*input.Bytes](cov), objective, nil
}

func newScheduler(cfg *config.Config) corpus.Scheduler[*input.Bytes] {
	if cfg.Corpus.Scheduler == "queue" {
		return &corpus.QueueScheduler[*input.Bytes]{}
	}
	return corpus.RandomScheduler[*input.Bytes]{}
}

// seedCorpus fills an empty corpus from the seeds directory, falling back to
// a single empty input. A resumed corpus is left as is.
func seedCorpus(cfg *config.Config, st *state.Std[*input.Bytes], logger *zap.Logger) error {
	if st.Corpus().Count() > 0 {
		logger.Info("resuming corpus", zap.Int("testcases", st.Corpus().Count()))
		return nil
	}
	if cfg.Seeds.Dir != "" {
		if _, err := st.LoadSeeds(cfg.Seeds.Dir, codec); err != nil {
			return err
		}
	}
	if st.Corpus().Count() == 0 {
		if _, err := st.AddSeed(input.NewBytes(nil)); err != nil {
			return err
		}
	}
	return nil
}
