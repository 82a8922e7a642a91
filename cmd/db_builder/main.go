package main

import (
	"os"

	"github.com/ephoris/fluidlsm/config"
	"github.com/ephoris/fluidlsm/fluid"
	"github.com/ephoris/fluidlsm/gen"
	"github.com/ephoris/fluidlsm/log"
	"github.com/ephoris/fluidlsm/lsm"

	. "github.com/ephoris/fluidlsm/error"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	sizeRatio          int
	lowerLevelRunMax   int
	largestLevelRunMax int
	bufferSize         int
	entrySize          int
	bitsPerElement     float64
	totalEntries       int64
	levelCount         int
	destroy            bool
	maxLevels          int
	verbosity          int
	seed               int64
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db_builder <db_path>",
		Short: "Build a key-value store with an exact level and run layout",
		Long: `db_builder fills a fresh store with synthetic entries so that the
number of levels, runs per level, and entries per run exactly match the
shape the given parameters describe. Compaction is suppressed for the
whole build, so the layout on disk is a pure function of the flags.`,
		Args: cobra.ExactArgs(1),
		RunE: run,
	}

	cmd.Flags().IntVarP(&sizeRatio, "size-ratio", "T", 2, "level size ratio, must be > 1")
	cmd.Flags().IntVarP(&lowerLevelRunMax, "lower-level-run-max", "K", 1, "max runs per non-terminal level")
	cmd.Flags().IntVarP(&largestLevelRunMax, "largest-level-run-max", "Z", 1, "max runs at the deepest level")
	cmd.Flags().IntVarP(&bufferSize, "buffer-size", "B", 1048576, "write buffer size in bytes")
	cmd.Flags().IntVarP(&entrySize, "entry-size", "E", 8192, "key+value size in bytes, at least 32")
	cmd.Flags().Float64VarP(&bitsPerElement, "bits-per-element", "b", 5.0, "bloom filter bits per element")
	cmd.Flags().Int64VarP(&totalEntries, "entries", "N", 0, "fill with this many entries")
	cmd.Flags().IntVarP(&levelCount, "levels", "L", 0, "fill this many levels to capacity")
	cmd.Flags().BoolVarP(&destroy, "destroy", "d", false, "destroy an existing store at the path first")
	cmd.Flags().IntVar(&maxLevels, "max-levels", 100, "cap on engine level depth")
	cmd.Flags().IntVarP(&verbosity, "verbose", "v", 0, "verbosity, 0 to 2")
	cmd.Flags().Int64Var(&seed, "seed", 0, "seed for reproducible entry generation, 0 uses the clock")
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	config.Init()
	log.Init()
	log.SetVerbosity(verbosity)

	byEntries := cmd.Flags().Changed("entries")
	byLevels := cmd.Flags().Changed("levels")
	if byEntries && byLevels {
		return ErrBothFillModes
	}
	if !byEntries && !byLevels {
		return ErrNoFillMode
	}

	opt := fluid.Options{
		SizeRatio:          sizeRatio,
		LowerLevelRunMax:   lowerLevelRunMax,
		LargestLevelRunMax: largestLevelRunMax,
		BufferSize:         bufferSize,
		EntrySize:          entrySize,
		BitsPerElement:     bitsPerElement,
	}
	if err := opt.Validate(); err != nil {
		return err
	}

	dbPath := args[0]
	if destroy {
		log.Logger.Infof("destroying existing store at %s", dbPath)
		if err := lsm.Destroy(dbPath); err != nil {
			return errors.Wrapf(err, "failed to destroy %s", dbPath)
		}
	}

	engineOpt := lsm.DefaultOptions(dbPath)
	engineOpt.LevelCount = maxLevels
	engineOpt.BloomBitsPerKey = bitsPerElement
	engineOpt.MemTableSize = uint32(bufferSize)
	engineOpt.Compression = false
	engineOpt.DisableAutoCompaction = true
	engineOpt.CompactThreadCount = 0
	fluid.Suppress(&engineOpt)

	db, err := lsm.Open(engineOpt)
	if err != nil {
		return errors.Wrapf(err, "failed to open store at %s", dbPath)
	}

	var g gen.Generator
	if seed != 0 {
		g = gen.NewSeededGenerator(seed)
	} else {
		g = gen.NewRandomGenerator()
	}

	loader := fluid.NewBulkLoader(opt, g)
	if byEntries {
		err = loader.BulkLoadEntries(db, totalEntries)
	} else {
		err = loader.BulkLoadLevels(db, levelCount)
	}
	if err != nil {
		db.Close()
		log.Logger.Errorf("load failed in state %s: %v", loader.State(), err)
		return err
	}

	runs := db.RunCounts()
	entries := db.EntryCounts()
	for level := range runs {
		log.Logger.Infof("level %d: %d runs, %d entries", level, runs[level], entries[level])
	}
	log.Logger.Infof("load %s", loader.State())
	return db.Close()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
