package training

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
)

// ProgressBar renders a single tqdm-style line that is rewritten on every update
type ProgressBar struct {
	out         io.Writer
	description string
	total       int
	current     int
	startTime   time.Time
	width       int
	metrics     map[string]float64
}

// NewProgressBar creates a new progress bar writing to stdout
func NewProgressBar(description string, total int) *ProgressBar {
	return NewProgressBarWriter(os.Stdout, description, total)
}

// NewProgressBarWriter creates a progress bar writing to out
func NewProgressBarWriter(out io.Writer, description string, total int) *ProgressBar {
	return &ProgressBar{
		out:         out,
		description: description,
		total:       total,
		startTime:   time.Now(),
		width:       40,
		metrics:     make(map[string]float64),
	}
}

// Update advances the progress bar to step and replaces the displayed metrics
func (pb *ProgressBar) Update(step int, metrics map[string]float64) {
	pb.current = step
	if metrics != nil {
		pb.metrics = metrics
	}
	pb.render()
}

// Increment advances the progress bar by one step
func (pb *ProgressBar) Increment() {
	pb.Update(pb.current+1, nil)
}

// Finish completes the progress bar
func (pb *ProgressBar) Finish() {
	pb.current = pb.total
	pb.render()
	fmt.Fprintln(pb.out)
}

// String returns the current line without the leading carriage return
func (pb *ProgressBar) String() string {
	percentage := 1.0
	if pb.total > 0 {
		percentage = float64(pb.current) / float64(pb.total)
	}
	if percentage > 1.0 {
		percentage = 1.0
	}

	filled := int(percentage * float64(pb.width))
	bar := strings.Repeat("█", filled) + strings.Repeat(" ", pb.width-filled)

	elapsed := time.Since(pb.startTime)
	line := fmt.Sprintf("%s: %3.0f%%|%s| %d/%d [%s",
		pb.description, percentage*100, bar, pb.current, pb.total, formatDuration(elapsed))

	if pb.current > 0 && percentage > 0 && percentage < 1 {
		eta := time.Duration(float64(elapsed)/percentage) - elapsed
		line += "<" + formatDuration(eta)
	} else {
		line += "<00:00"
	}
	if pb.current > 0 && elapsed > 0 {
		line += fmt.Sprintf(", %.2fit/s", float64(pb.current)/elapsed.Seconds())
	}

	keys := make([]string, 0, len(pb.metrics))
	for k := range pb.metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		line += fmt.Sprintf(", %s=%.3f", k, pb.metrics[k])
	}
	return line + "]"
}

func (pb *ProgressBar) render() {
	fmt.Fprint(pb.out, "\r"+pb.String())
}

// formatDuration formats duration as MM:SS
func formatDuration(d time.Duration) string {
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
