package checkpoints

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func testState(epoch int, prec float64) *State {
	return &State{
		Epoch:     epoch,
		Arch:      "resnet101",
		BestPrec1: prec,
		Model: map[string]any{
			"conv1.weight": []any{0.5, -0.25},
			"fc.bias":      1.5,
		},
	}
}

func newTestWriter(fs afero.Fs, opts ...WriterOption) *Writer {
	w := NewWriter(fs, append([]WriterOption{WithRunID("run-1")}, opts...)...)
	w.now = func() time.Time { return fixedTime }
	return w
}

func TestBestPath(t *testing.T) {
	assert.Equal(t, "record/model_best.pth.tar", BestPath(DefaultPath))
	assert.Equal(t, "model_best.pth.tar", BestPath("checkpoint.pth.tar"))
	assert.Equal(t, "/tmp/run/model_best.pth.tar", BestPath("/tmp/run/latest.bin"))
}

func TestSaveBestAndLatest(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := newTestWriter(fs)

	require.NoError(t, w.Save(testState(1, 40), true, DefaultPath))

	latest, err := afero.ReadFile(fs, DefaultPath)
	require.NoError(t, err)
	best, err := afero.ReadFile(fs, BestPath(DefaultPath))
	require.NoError(t, err)
	assert.Equal(t, latest, best)

	require.NoError(t, w.Save(testState(2, 40), false, DefaultPath))

	cp, err := w.Load(DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, 2, cp.State.Epoch)

	cp, err = w.Load(BestPath(DefaultPath))
	require.NoError(t, err)
	assert.Equal(t, 1, cp.State.Epoch, "best checkpoint must not follow a non-best save")

	require.NoError(t, w.Save(testState(3, 55), true, DefaultPath))
	cp, err = w.Load(BestPath(DefaultPath))
	require.NoError(t, err)
	assert.Equal(t, 3, cp.State.Epoch)
	assert.Equal(t, 55.0, cp.State.BestPrec1)
}

func TestSaveWithoutDirectory(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := newTestWriter(fs)

	require.NoError(t, w.Save(testState(1, 10), false, "latest.pth.tar"))
	exists, err := afero.Exists(fs, BestFileName)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSaveNilState(t *testing.T) {
	w := newTestWriter(afero.NewMemMapFs())
	assert.Error(t, w.Save(nil, false, DefaultPath))
}

func TestFormats(t *testing.T) {
	for _, format := range []CheckpointFormat{FormatJSON, FormatProto} {
		t.Run(format.String(), func(t *testing.T) {
			fs := afero.NewMemMapFs()
			w := newTestWriter(fs, WithFormat(format))

			state := testState(7, 61.25)
			state.Optimizer = map[string]any{"lr": 0.001}
			require.NoError(t, w.Save(state, false, DefaultPath))

			cp, err := Load(fs, DefaultPath)
			require.NoError(t, err)
			assert.Equal(t, *state, cp.State)
			assert.Equal(t, "run-1", cp.Metadata.RunID)
			assert.True(t, fixedTime.Equal(cp.Metadata.CreatedAt))
		})
	}
}

func TestUnsupportedFormat(t *testing.T) {
	w := newTestWriter(afero.NewMemMapFs(), WithFormat(CheckpointFormat(9)))
	err := w.Save(testState(1, 1), false, DefaultPath)
	assert.ErrorContains(t, err, "Unknown")
}

func TestLoadErrors(t *testing.T) {
	fs := afero.NewMemMapFs()

	_, err := Load(fs, "missing.pth.tar")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "broken.pth.tar", []byte("{not json"), 0644))
	_, err = Load(fs, "broken.pth.tar")
	assert.ErrorContains(t, err, "failed to decode checkpoint")
}

func TestGeneratedRunID(t *testing.T) {
	a := NewWriter(afero.NewMemMapFs())
	b := NewWriter(afero.NewMemMapFs())
	assert.Len(t, a.RunID(), 36)
	assert.NotEqual(t, a.RunID(), b.RunID())
}

type recordingMirror struct {
	uploads map[string][]byte
	err     error
}

func (m *recordingMirror) Upload(_ context.Context, name string, r io.Reader, size int64) error {
	if m.err != nil {
		return m.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return io.ErrShortWrite
	}
	if m.uploads == nil {
		m.uploads = make(map[string][]byte)
	}
	m.uploads[name] = data
	return nil
}

func TestMirror(t *testing.T) {
	fs := afero.NewMemMapFs()
	mirror := &recordingMirror{}
	w := newTestWriter(fs, WithMirror(mirror))

	require.NoError(t, w.Save(testState(1, 5), false, DefaultPath))
	assert.Len(t, mirror.uploads, 1)
	assert.Contains(t, mirror.uploads, "checkpoint.pth.tar")

	require.NoError(t, w.Save(testState(2, 9), true, DefaultPath))
	require.Len(t, mirror.uploads, 2)
	assert.True(t, bytes.Equal(mirror.uploads["checkpoint.pth.tar"], mirror.uploads[BestFileName]))

	mirror.err = assert.AnError
	err := w.Save(testState(3, 9), false, DefaultPath)
	assert.ErrorIs(t, err, assert.AnError)

	exists, err := afero.Exists(fs, DefaultPath)
	require.NoError(t, err)
	assert.True(t, exists, "local checkpoint is written before mirroring")
}

func TestMinioObjectKey(t *testing.T) {
	m, err := NewMinioMirror(MinioConfig{Endpoint: "localhost:9000", Bucket: "checkpoints", Prefix: "/ucf101/run-1/"})
	require.NoError(t, err)
	assert.Equal(t, "ucf101/run-1/model_best.pth.tar", m.objectKey(BestFileName))

	m.prefix = ""
	assert.Equal(t, "checkpoint.pth.tar", m.objectKey("checkpoint.pth.tar"))

	_, err = NewMinioMirror(MinioConfig{Endpoint: "localhost:9000"})
	assert.Error(t, err)
}
