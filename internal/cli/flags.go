package cli

import (
	"github.com/spf13/cobra"

	"github.com/haskel/kstar/internal/config"
)

// modelFlags override the model and evaluation sections of the config
// file. Only flags set on the command line are applied.
type modelFlags struct {
	window        int
	missingMode   string
	blendMethod   string
	globalBlend   int
	randomColumns int
	seed          int64
	normalization string
	drift         bool
	classIndex    int
}

func (f *modelFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.IntVarP(&f.window, "window", "w", 0, "training window capacity")
	fs.StringVar(&f.missingMode, "missing-mode", "", "missing value treatment (average, delete, max_diff, normal)")
	fs.StringVar(&f.blendMethod, "blend", "", "blend method (sphere, entropic)")
	fs.IntVarP(&f.globalBlend, "global-blend", "b", 0, "global blend percentage (0-100)")
	fs.IntVar(&f.randomColumns, "random-columns", 0, "random class columns for entropic blending")
	fs.Int64Var(&f.seed, "seed", 0, "random class column seed")
	fs.StringVar(&f.normalization, "normalization", "", "missing attribute normalization (incremental, post_loop)")
	fs.BoolVar(&f.drift, "reinit-on-drift", false, "reinitialize when the window class column changes")
	fs.IntVar(&f.classIndex, "class-index", 0, "class attribute index (-1 = last)")
}

func (f *modelFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("window") {
		cfg.Model.WindowCapacity = f.window
	}
	if fs.Changed("missing-mode") {
		cfg.Model.MissingMode = f.missingMode
	}
	if fs.Changed("blend") {
		cfg.Model.BlendMethod = f.blendMethod
	}
	if fs.Changed("global-blend") {
		cfg.Model.GlobalBlend = f.globalBlend
	}
	if fs.Changed("random-columns") {
		cfg.Model.RandomColumns = f.randomColumns
	}
	if fs.Changed("seed") {
		cfg.Model.Seed = f.seed
	}
	if fs.Changed("normalization") {
		cfg.Model.MissingNormalization = f.normalization
	}
	if fs.Changed("reinit-on-drift") {
		cfg.Model.ReinitializeOnDrift = f.drift
	}
	if fs.Changed("class-index") {
		cfg.Evaluation.ClassIndex = f.classIndex
	}
}
