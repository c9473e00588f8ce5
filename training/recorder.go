package training

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// Mode selects the column schema of an epoch record
type Mode string

const (
	ModeTrain Mode = "train"
	ModeTest  Mode = "test"
)

// ErrUnknownMode is returned for modes other than ModeTrain and ModeTest
var ErrUnknownMode = errors.New("unknown record mode")

var (
	trainColumns = []string{"Epoch", "Batch Time", "Data Time", "Loss", "Prec@1", "Prec@5"}
	testColumns  = []string{"Epoch", "Batch Time", "Loss", "Prec@1", "Prec@5"}
)

// EpochInfo holds the per-epoch values written to the metrics log. DataTime is
// only recorded in train mode.
type EpochInfo struct {
	Epoch     int
	BatchTime float64
	DataTime  float64
	Loss      float64
	Prec1     float64
	Prec5     float64
}

// Header returns the CSV header for mode
func Header(mode Mode) ([]string, error) {
	switch mode {
	case ModeTrain:
		return append([]string(nil), trainColumns...), nil
	case ModeTest:
		return append([]string(nil), testColumns...), nil
	default:
		return nil, errors.Wrapf(ErrUnknownMode, "%q", string(mode))
	}
}

// Row converts info into a CSV row matching Header(mode)
func Row(info EpochInfo, mode Mode) ([]string, error) {
	switch mode {
	case ModeTrain:
		return []string{
			strconv.Itoa(info.Epoch),
			formatValue(info.BatchTime),
			formatValue(info.DataTime),
			formatValue(info.Loss),
			formatValue(info.Prec1),
			formatValue(info.Prec5),
		}, nil
	case ModeTest:
		return []string{
			strconv.Itoa(info.Epoch),
			formatValue(info.BatchTime),
			formatValue(info.Loss),
			formatValue(info.Prec1),
			formatValue(info.Prec5),
		}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownMode, "%q", string(mode))
	}
}

// FormatSummary renders the human readable two-line epoch summary
func FormatSummary(info EpochInfo, mode Mode) (string, error) {
	switch mode {
	case ModeTrain:
		return fmt.Sprintf("Time %s Data %s \nLoss %s Prec@1 %s Prec@5 %s\n",
			formatValue(info.BatchTime), formatValue(info.DataTime),
			formatValue(info.Loss), formatValue(info.Prec1), formatValue(info.Prec5)), nil
	case ModeTest:
		return fmt.Sprintf("Time %s \nLoss %s Prec@1 %s Prec@5 %s \n",
			formatValue(info.BatchTime),
			formatValue(info.Loss), formatValue(info.Prec1), formatValue(info.Prec5)), nil
	default:
		return "", errors.Wrapf(ErrUnknownMode, "%q", string(mode))
	}
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Recorder appends epoch records to CSV files, prints their summary and logs a
// structured entry per epoch. A path must have a single writer; nothing is locked.
type Recorder struct {
	fs     afero.Fs
	out    io.Writer
	log    logrus.FieldLogger
	gauges *EpochGauges
}

// RecorderOption configures a Recorder
type RecorderOption func(*Recorder)

// WithSummaryWriter sets where the human readable summary is printed
func WithSummaryWriter(w io.Writer) RecorderOption {
	return func(r *Recorder) {
		r.out = w
	}
}

// WithLogger sets the sink for structured epoch entries
func WithLogger(log logrus.FieldLogger) RecorderOption {
	return func(r *Recorder) {
		r.log = log
	}
}

// WithGauges publishes every recorded epoch to g
func WithGauges(g *EpochGauges) RecorderOption {
	return func(r *Recorder) {
		r.gauges = g
	}
}

// NewRecorder creates a recorder writing through fs. Summaries and log entries
// go to stdout unless WithSummaryWriter or WithLogger is given.
func NewRecorder(fs afero.Fs, opts ...RecorderOption) *Recorder {
	r := &Recorder{fs: fs}
	for _, opt := range opts {
		opt(r)
	}
	if r.out == nil {
		r.out = os.Stdout
	}
	if r.log == nil {
		logger := logrus.New()
		logger.SetOutput(os.Stdout)
		r.log = logger
	}
	return r
}

// Record prints the summary of info and appends it to the CSV at path, writing
// the header first when the file does not exist yet
func (r *Recorder) Record(info EpochInfo, path string, mode Mode) error {
	summary, err := FormatSummary(info, mode)
	if err != nil {
		return err
	}
	header, _ := Header(mode)
	row, _ := Row(info, mode)

	if _, err := io.WriteString(r.out, summary); err != nil {
		return errors.Wrap(err, "failed to print epoch summary")
	}
	r.log.WithFields(logrus.Fields{
		"mode":  string(mode),
		"epoch": info.Epoch,
		"loss":  info.Loss,
		"prec1": info.Prec1,
		"prec5": info.Prec5,
	}).Info("epoch recorded")

	exists, err := afero.Exists(r.fs, path)
	if err != nil {
		return errors.Wrapf(err, "failed to stat %s", path)
	}
	if !exists {
		if dir := filepath.Dir(path); dir != "." {
			if err := r.fs.MkdirAll(dir, 0755); err != nil {
				return errors.Wrapf(err, "failed to create %s", dir)
			}
		}
	}

	file, err := r.fs.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", path)
	}

	if err := writeCSV(file, header, row, !exists); err != nil {
		file.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := file.Close(); err != nil {
		return errors.Wrapf(err, "failed to close %s", path)
	}

	if r.gauges != nil {
		r.gauges.Observe(info, mode)
	}
	return nil
}

func writeCSV(out io.Writer, header, row []string, withHeader bool) error {
	w := csv.NewWriter(out)
	if withHeader {
		if err := w.Write(header); err != nil {
			return err
		}
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
