package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haskel/kstar/internal/arff"
	"github.com/haskel/kstar/internal/cli/tui"
	"github.com/haskel/kstar/internal/config"
	"github.com/haskel/kstar/internal/evaluate"
	"github.com/haskel/kstar/internal/kstar"
	"github.com/haskel/kstar/internal/report"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [flags] <file.arff>",
	Short: "Run prequential evaluation over an ARFF stream",
	Long: `Score every instance of an ARFF file before training on it and
report accuracy and kappa (nominal class) or MAE and RMSE (numeric class).`,
	Example: `  kstar evaluate data/electricity.arff
  kstar evaluate --window 100 --blend entropic data/electricity.arff
  kstar evaluate --tui --rate 500 data/electricity.arff`,
	Args: cobra.ExactArgs(1),
	RunE: runEvaluate,
}

var (
	evalModel       modelFlags
	evalTUI         bool
	evalMax         int
	evalReportEvery int
	evalRate        float64
	evalCurve       string
)

func init() {
	evalModel.register(evaluateCmd)
	evaluateCmd.Flags().BoolVar(&evalTUI, "tui", false, "show a live evaluation view")
	evaluateCmd.Flags().IntVarP(&evalMax, "max", "n", 0, "stop after this many instances (0 = all)")
	evaluateCmd.Flags().IntVar(&evalReportEvery, "report-every", 0, "instances between progress reports")
	evaluateCmd.Flags().Float64Var(&evalRate, "rate", 0, "limit throughput to this many instances per second")
	evaluateCmd.Flags().StringVar(&evalCurve, "curve", "", "write the learning curve to this JSON file")
	rootCmd.AddCommand(evaluateCmd)
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	evalModel.apply(cmd, cfg)
	if cmd.Flags().Changed("max") {
		cfg.Evaluation.MaxInstances = evalMax
	}
	if cmd.Flags().Changed("report-every") {
		cfg.Evaluation.ReportEvery = evalReportEvery
	}
	if cmd.Flags().Changed("rate") {
		cfg.Evaluation.RatePerSecond = evalRate
	}
	if cmd.Flags().Changed("curve") {
		cfg.Evaluation.CurveFile = evalCurve
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, closeLog, err := newLogger(cfg, evalTUI)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	f, rd, err := openStream(args[0], cfg.Evaluation.ClassIndex)
	if err != nil {
		return err
	}
	defer f.Close()

	kcfg, err := cfg.Model.KStar()
	if err != nil {
		return err
	}
	clf, err := kstar.NewClassifier(rd.Schema(), kcfg, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ev := evaluate.New(clf, evaluationOptions(cfg.Evaluation), log)

	var curve *report.Writer
	if path := cfg.Evaluation.CurveFile; path != "" {
		curve = report.New(path, filepath.Base(args[0]), cfg.Evaluation.CurveFlushInterval(), log)
		curve.Start(ctx)
	}

	var result evaluate.Progress
	if evalTUI {
		result, err = runWithTUI(ctx, ev, rd, args[0], curve)
	} else {
		result, err = ev.Run(ctx, rd, recordTo(curve, nil))
	}
	if curve != nil {
		if serr := curve.Stop(); serr != nil {
			log.Error("failed to save learning curve", "path", cfg.Evaluation.CurveFile, "error", serr)
		}
	}
	if err != nil && result.Instances == 0 {
		return err
	}

	if werr := printResult(cmd.OutOrStdout(), args[0], result); werr != nil {
		return werr
	}
	return err
}

func evaluationOptions(c config.EvaluationConfig) evaluate.Options {
	return evaluate.Options{
		ReportEvery:       c.ReportEvery,
		MaxInstances:      c.MaxInstances,
		RatePerSecond:     c.RatePerSecond,
		Burst:             c.Burst,
		SampleInterval:    c.SampleInterval(),
		MinAvailableBytes: c.MinAvailableBytes(),
	}
}

// runWithTUI runs the evaluation in the background and feeds its progress
// to the live view. Quitting the view cancels the evaluation.
func runWithTUI(ctx context.Context, ev *evaluate.Evaluator, src evaluate.Source, source string, curve *report.Writer) (evaluate.Progress, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	progress := make(chan evaluate.Progress, 16)
	done := make(chan struct{})

	var (
		result evaluate.Progress
		runErr error
	)
	go func() {
		defer close(done)
		defer close(progress)
		result, runErr = ev.Run(ctx, src, recordTo(curve, func(p evaluate.Progress) {
			if !p.Done {
				select {
				case progress <- p:
				default:
				}
				return
			}
			select {
			case progress <- p:
			case <-ctx.Done():
			}
		}))
	}()

	tuiErr := tui.Run(tui.Config{
		Source:   filepath.Base(source),
		Relation: src.Schema().Relation,
		Progress: progress,
	})
	cancel()
	<-done

	if tuiErr != nil {
		return result, tuiErr
	}
	if errors.Is(runErr, context.Canceled) {
		return result, nil
	}
	return result, runErr
}

// recordTo adds every report to curve, when set, before calling next.
func recordTo(curve *report.Writer, next func(evaluate.Progress)) func(evaluate.Progress) {
	if curve == nil {
		return next
	}
	return func(p evaluate.Progress) {
		curve.Add(p)
		if next != nil {
			next(p)
		}
	}
}

func printResult(w io.Writer, source string, p evaluate.Progress) error {
	if jsonOut {
		data, err := json.MarshalIndent(p, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}
	_, err := fmt.Fprintln(w, tui.Summary(filepath.Base(source), p))
	return err
}

// openStream opens an ARFF file and selects its class attribute.
func openStream(path string, classIndex int) (*os.File, *arff.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open stream: %w", err)
	}

	rd, err := arff.NewReader(bufio.NewReader(f))
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := rd.SetClassIndex(classIndex); err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, rd, nil
}
