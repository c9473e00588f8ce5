package checkpoints

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// DefaultPath is where the latest checkpoint is written unless told otherwise
	DefaultPath = "record/checkpoint.pth.tar"
	// BestFileName is the name of the best checkpoint, next to the latest one
	BestFileName = "model_best.pth.tar"
)

// CheckpointFormat defines the serialization format
type CheckpointFormat int

const (
	FormatJSON CheckpointFormat = iota
	FormatProto
)

func (cf CheckpointFormat) String() string {
	switch cf {
	case FormatJSON:
		return "JSON"
	case FormatProto:
		return "Proto"
	default:
		return "Unknown"
	}
}

// State is the training state handed over by the training loop. Model and
// Optimizer are opaque to this package.
type State struct {
	Epoch     int            `json:"epoch"`
	Arch      string         `json:"arch"`
	BestPrec1 float64        `json:"best_prec1"`
	Model     map[string]any `json:"state_dict"`
	Optimizer map[string]any `json:"optimizer,omitempty"`
}

// CheckpointMetadata contains checkpoint metadata
type CheckpointMetadata struct {
	RunID     string    `json:"run_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Checkpoint is what ends up on disk
type Checkpoint struct {
	State    State              `json:"state"`
	Metadata CheckpointMetadata `json:"metadata"`
}

// Mirror receives a copy of every checkpoint file after it is written
type Mirror interface {
	Upload(ctx context.Context, name string, r io.Reader, size int64) error
}

// Writer saves checkpoints and keeps the best one in a fixed sibling file.
// It is meant to be driven by a single training loop.
type Writer struct {
	fs     afero.Fs
	format CheckpointFormat
	runID  string
	mirror Mirror
	now    func() time.Time
}

// WriterOption configures a Writer
type WriterOption func(*Writer)

// WithFormat selects the serialization format, JSON by default
func WithFormat(format CheckpointFormat) WriterOption {
	return func(w *Writer) {
		w.format = format
	}
}

// WithMirror uploads every saved file to m
func WithMirror(m Mirror) WriterOption {
	return func(w *Writer) {
		w.mirror = m
	}
}

// WithRunID overrides the generated run identifier
func WithRunID(id string) WriterOption {
	return func(w *Writer) {
		w.runID = id
	}
}

// NewWriter creates a checkpoint writer on fs
func NewWriter(fs afero.Fs, opts ...WriterOption) *Writer {
	w := &Writer{
		fs:     fs,
		format: FormatJSON,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.runID == "" {
		w.runID = uuid.NewString()
	}
	return w
}

// RunID returns the identifier stamped on every checkpoint of this writer
func (w *Writer) RunID() string {
	return w.runID
}

// BestPath returns the best-checkpoint path that goes with path
func BestPath(path string) string {
	return filepath.Join(filepath.Dir(path), BestFileName)
}

// Save writes state to path, replacing any previous file, and copies it to
// BestPath(path) when isBest is set. The two writes are not atomic as a pair.
func (w *Writer) Save(state *State, isBest bool, path string) error {
	return w.SaveContext(context.Background(), state, isBest, path)
}

// SaveContext is Save with a context for the optional mirror upload
func (w *Writer) SaveContext(ctx context.Context, state *State, isBest bool, path string) error {
	if state == nil {
		return errors.New("nil checkpoint state")
	}

	data, err := w.encode(&Checkpoint{
		State: *state,
		Metadata: CheckpointMetadata{
			RunID:     w.runID,
			CreatedAt: w.now().UTC(),
		},
	})
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := w.fs.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "failed to create checkpoint directory %s", dir)
		}
	}
	if err := afero.WriteFile(w.fs, path, data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write checkpoint %s", path)
	}

	bestPath := BestPath(path)
	if isBest {
		if err := copyFile(w.fs, path, bestPath); err != nil {
			return errors.Wrapf(err, "failed to copy %s to %s", path, bestPath)
		}
	}

	if w.mirror == nil {
		return nil
	}
	if err := w.upload(ctx, path); err != nil {
		return err
	}
	if isBest {
		return w.upload(ctx, bestPath)
	}
	return nil
}

func (w *Writer) upload(ctx context.Context, path string) error {
	file, err := w.fs.Open(path)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s for upload", path)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return errors.Wrapf(err, "failed to stat %s", path)
	}
	if err := w.mirror.Upload(ctx, filepath.Base(path), file, info.Size()); err != nil {
		return errors.Wrapf(err, "failed to mirror %s", path)
	}
	return nil
}

// Load reads a checkpoint written in either format
func (w *Writer) Load(path string) (*Checkpoint, error) {
	return Load(w.fs, path)
}

// Load reads a checkpoint from fs, detecting its format
func Load(fs afero.Fs, path string) (*Checkpoint, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open checkpoint %s", path)
	}

	cp, err := decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode checkpoint %s", path)
	}
	return cp, nil
}

func (w *Writer) encode(cp *Checkpoint) ([]byte, error) {
	switch w.format {
	case FormatJSON:
		data, err := json.MarshalIndent(cp, "", "  ")
		if err != nil {
			return nil, errors.Wrap(err, "failed to encode checkpoint")
		}
		return data, nil
	case FormatProto:
		return encodeProto(cp)
	default:
		return nil, errors.Errorf("unsupported checkpoint format: %s", w.format.String())
	}
}

// encodeProto stores the checkpoint as a google.protobuf.Struct. The state maps
// are opaque, so they go through their JSON form to reach Struct-compatible types.
func encodeProto(cp *Checkpoint) ([]byte, error) {
	raw, err := json.Marshal(cp)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode checkpoint")
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, errors.Wrap(err, "failed to encode checkpoint")
	}

	st, err := structpb.NewStruct(generic)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build checkpoint struct")
	}
	data, err := proto.Marshal(st)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal checkpoint")
	}
	return data, nil
}

func decode(data []byte) (*Checkpoint, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var cp Checkpoint
		if err := json.Unmarshal(trimmed, &cp); err != nil {
			return nil, err
		}
		return &cp, nil
	}

	var st structpb.Struct
	if err := proto.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(st.AsMap())
	if err != nil {
		return nil, err
	}
	var cp Checkpoint
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func copyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := fs.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
