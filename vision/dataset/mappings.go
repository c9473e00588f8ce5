package dataset

import (
	"bufio"
	"bytes"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Errors returned by the UCF datasets
var (
	ErrMissingFrameCount = errors.New("video has no frame count")
	ErrMalformedEntry    = errors.New("malformed test entry")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrConflictingLabel  = errors.New("video has conflicting labels")
)

// entrySeparator joins a sample key to its payload in keys and test entries
const entrySeparator = "[@]"

// LabelMap maps a video identifier ("Class_gXX_cYY") to its 1-indexed class label
type LabelMap map[string]int

// FrameCountMap maps a canonical video identifier to its number of extracted frames
type FrameCountMap map[string]int

// canonicalLabels rekeys labels by NormalizeClassKey. Both spellings of a video
// may be present only when they agree on the label.
func canonicalLabels(labels LabelMap) (LabelMap, error) {
	out := make(LabelMap, len(labels))
	for key, label := range labels {
		video := NormalizeClassKey(key)
		if prev, ok := out[video]; ok && prev != label {
			return nil, errors.Wrapf(ErrConflictingLabel, "video %s: %d and %d", video, min(prev, label), max(prev, label))
		}
		out[video] = label
	}
	return out, nil
}

// LoadLabelMap reads a label mapping from a YAML or JSON file
func LoadLabelMap(fs afero.Fs, path string) (LabelMap, error) {
	raw, err := loadIntMap(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load label map")
	}
	return LabelMap(raw), nil
}

// LoadFrameCountMap reads a frame-count listing from a YAML or JSON file. Keys may be
// raw listing keys ("v_Class_g01_c01.avi"); they are normalized with FrameCountKey.
func LoadFrameCountMap(fs afero.Fs, path string) (FrameCountMap, error) {
	raw, err := loadIntMap(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load frame counts")
	}
	return NewFrameCountMap(raw), nil
}

// NewFrameCountMap normalizes raw listing keys into a FrameCountMap
func NewFrameCountMap(raw map[string]int) FrameCountMap {
	counts := make(FrameCountMap, len(raw))
	for key, n := range raw {
		counts[FrameCountKey(key)] = n
	}
	return counts
}

func loadIntMap(fs afero.Fs, path string) (map[string]int, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}

	out := make(map[string]int)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &out)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &out)
	default:
		return nil, errors.Errorf("unsupported mapping format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return out, nil
}

// LoadTestList reads one "<video>-<frame>[@]<label>" entry per line, skipping blank lines
func LoadTestList(fs afero.Fs, path string) ([]string, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load test list")
	}

	var entries []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			entries = append(entries, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return entries, nil
}

// BuildTestList samples framesPerVideo evenly spaced frames from every labelled
// video and formats them as test entries. Videos are emitted in sorted order.
func BuildTestList(labels LabelMap, frames FrameCountMap, framesPerVideo int) ([]string, error) {
	if framesPerVideo <= 0 {
		return nil, errors.Errorf("frames per video must be positive, got %d", framesPerVideo)
	}

	canonical, err := canonicalLabels(labels)
	if err != nil {
		return nil, err
	}
	videos := make([]string, 0, len(canonical))
	for video := range canonical {
		videos = append(videos, video)
	}
	sort.Strings(videos)

	entries := make([]string, 0, len(videos)*framesPerVideo)
	for _, video := range videos {
		count, ok := frames[video]
		if !ok {
			return nil, errors.Wrapf(ErrMissingFrameCount, "video %s", video)
		}

		interval := count / framesPerVideo
		if interval == 0 {
			interval = 1
		}
		for i := 0; i < framesPerVideo && i < count; i++ {
			entries = append(entries, FormatTestEntry(video, i*interval+1, canonical[video]))
		}
	}
	return entries, nil
}

// FormatTestEntry formats a test entry for video, 1-based frame and raw label
func FormatTestEntry(video string, frame, label int) string {
	return video + "-" + strconv.Itoa(frame) + entrySeparator + strconv.Itoa(label)
}

// parseTestEntry splits "<video>-<frame>[@]<label>" into its parts
func parseTestEntry(entry string) (video string, frame, label int, err error) {
	key, rawLabel, found := strings.Cut(entry, entrySeparator)
	if !found {
		return "", 0, 0, errors.Wrapf(ErrMalformedEntry, "%q has no label", entry)
	}

	dash := strings.LastIndex(key, "-")
	if dash <= 0 {
		return "", 0, 0, errors.Wrapf(ErrMalformedEntry, "%q has no frame index", entry)
	}

	frame, err = strconv.Atoi(key[dash+1:])
	if err != nil {
		return "", 0, 0, errors.Wrapf(ErrMalformedEntry, "%q: bad frame index", entry)
	}
	label, err = strconv.Atoi(rawLabel)
	if err != nil {
		return "", 0, 0, errors.Wrapf(ErrMalformedEntry, "%q: bad label", entry)
	}
	return key[:dash], frame, label, nil
}
