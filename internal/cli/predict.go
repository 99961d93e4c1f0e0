package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/haskel/kstar/internal/arff"
	"github.com/haskel/kstar/internal/instance"
	"github.com/haskel/kstar/internal/kstar"
)

var predictCmd = &cobra.Command{
	Use:   "predict --train <train.arff> [flags] <test.arff>",
	Short: "Train on one ARFF file and predict another",
	Long: `Feed every instance of the training file through the classifier window,
then print one prediction per test instance. Only the last --window
training instances take part in the predictions.`,
	Example: `  kstar predict --train weather.arff weather-test.arff
  kstar predict --train weather.arff --window 50 --json weather-test.arff`,
	Args: cobra.ExactArgs(1),
	RunE: runPredict,
}

var (
	predictModel    modelFlags
	predictTrain    string
	predictDescribe bool
)

func init() {
	predictModel.register(predictCmd)
	predictCmd.Flags().StringVarP(&predictTrain, "train", "t", "", "training ARFF file")
	predictCmd.Flags().BoolVar(&predictDescribe, "describe", false, "print the model description before predictions")
	_ = predictCmd.MarkFlagRequired("train")
	rootCmd.AddCommand(predictCmd)
}

// prediction is one output row.
type prediction struct {
	Index        int       `json:"index"`
	Actual       string    `json:"actual"`
	Predicted    string    `json:"predicted"`
	Distribution []float64 `json:"distribution,omitempty"`
}

func runPredict(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	predictModel.apply(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}
	log, closeLog, err := newLogger(cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	trainFile, train, err := openStream(predictTrain, cfg.Evaluation.ClassIndex)
	if err != nil {
		return err
	}
	defer trainFile.Close()

	kcfg, err := cfg.Model.KStar()
	if err != nil {
		return err
	}
	clf, err := kstar.NewClassifier(train.Schema(), kcfg, log)
	if err != nil {
		return err
	}

	trained, err := trainAll(clf, train)
	if err != nil {
		return fmt.Errorf("%s: %w", predictTrain, err)
	}
	log.Info("training finished", "file", predictTrain, "instances", trained)

	testFile, test, err := openStream(args[0], cfg.Evaluation.ClassIndex)
	if err != nil {
		return err
	}
	defer testFile.Close()

	if !train.Schema().Compatible(test.Schema()) {
		return fmt.Errorf("%s: %w", args[0], kstar.ErrSchemaMismatch)
	}

	out := cmd.OutOrStdout()
	if predictDescribe {
		if err := clf.Describe(out); err != nil {
			return err
		}
	}
	return writePredictions(out, clf, test)
}

func trainAll(clf *kstar.Classifier, src *arff.Reader) (int, error) {
	n := 0
	for {
		in, err := src.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := clf.TrainOnInstance(in); err != nil {
			return n, err
		}
		n++
	}
}

func writePredictions(w io.Writer, clf *kstar.Classifier, src *arff.Reader) error {
	class := clf.Schema().ClassAttribute()
	enc := json.NewEncoder(w)

	if !jsonOut {
		if _, err := fmt.Fprintln(w, "index\tactual\tpredicted\tdistribution"); err != nil {
			return err
		}
	}

	for i := 1; ; i++ {
		in, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read test instance %d: %w", i, err)
		}

		votes, err := clf.VotesForInstance(in)
		if err != nil {
			return fmt.Errorf("predict test instance %d: %w", i, err)
		}

		row := prediction{
			Index:     i,
			Actual:    formatValue(class, in.ClassValue()),
			Predicted: formatVotes(class, votes),
		}
		if class.IsNominal() {
			row.Distribution = votes
		}

		if jsonOut {
			err = enc.Encode(row)
		} else {
			_, err = fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", row.Index, row.Actual, row.Predicted, formatDistribution(row.Distribution))
		}
		if err != nil {
			return err
		}
	}
}

func formatVotes(class instance.Attribute, votes []float64) string {
	if len(votes) == 0 {
		return "?"
	}
	if class.IsNumeric() {
		return formatValue(class, votes[0])
	}
	return formatValue(class, float64(floats.MaxIdx(votes)))
}

func formatValue(a instance.Attribute, v float64) string {
	if math.IsNaN(v) {
		return "?"
	}
	if a.IsNominal() {
		i := int(v)
		if i >= 0 && i < a.NumValues() {
			return a.Values[i]
		}
		return "?"
	}
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func formatDistribution(d []float64) string {
	parts := make([]string, len(d))
	for i, p := range d {
		parts[i] = strconv.FormatFloat(p, 'f', 3, 64)
	}
	return strings.Join(parts, ",")
}
