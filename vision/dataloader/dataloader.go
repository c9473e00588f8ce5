package dataloader

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/tsawler/go-ucf/vision/dataset"
	"github.com/tsawler/go-ucf/vision/preprocessing"
)

// Dataset is the contract the loader batches over
type Dataset interface {
	Len() int
	Get(index int) (*dataset.Sample, error)
}

// deterministic is implemented by datasets whose Get always returns the same sample
type deterministic interface {
	Deterministic() bool
}

// Config holds configuration for DataLoader
type Config struct {
	BatchSize    int
	Shuffle      bool
	NumWorkers   int        // Number of goroutines calling Dataset.Get
	MaxCacheSize int        // Samples cached for deterministic datasets, 0 disables caching
	Rand         *rand.Rand // Shuffle source, seeded from the clock when nil
}

// Batch is a set of samples laid out contiguously in CHW order
type Batch struct {
	Images []float32
	Labels []int32
	Videos []string
	Size   int
}

// DataLoader fetches batches from a Dataset with a bounded pool of workers
type DataLoader struct {
	dataset   Dataset
	batchSize int
	shuffle   bool
	workers   int
	rng       *rand.Rand

	mu       sync.Mutex
	indices  []int
	position int

	cache *CacheManager
}

// NewDataLoader creates a new data loader
func NewDataLoader(ds Dataset, config Config) *DataLoader {
	if config.BatchSize <= 0 {
		config.BatchSize = 1
	}
	if config.NumWorkers <= 0 {
		config.NumWorkers = 1
	}
	if config.Rand == nil {
		config.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	indices := make([]int, ds.Len())
	for i := range indices {
		indices[i] = i
	}

	dl := &DataLoader{
		dataset:   ds,
		batchSize: config.BatchSize,
		shuffle:   config.Shuffle,
		workers:   config.NumWorkers,
		rng:       config.Rand,
		indices:   indices,
	}
	if d, ok := ds.(deterministic); ok && d.Deterministic() && config.MaxCacheSize > 0 {
		dl.cache = NewCacheManager(config.MaxCacheSize)
	}
	if dl.shuffle {
		dl.shuffleIndices()
	}
	return dl
}

// Len returns the number of batches in an epoch
func (dl *DataLoader) Len() int {
	return (len(dl.indices) + dl.batchSize - 1) / dl.batchSize
}

// Reset rewinds the loader and reshuffles when shuffling is enabled
func (dl *DataLoader) Reset() {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	dl.position = 0
	if dl.shuffle {
		dl.shuffleIndices()
	}
}

func (dl *DataLoader) shuffleIndices() {
	dl.rng.Shuffle(len(dl.indices), func(i, j int) {
		dl.indices[i], dl.indices[j] = dl.indices[j], dl.indices[i]
	})
}

// NextBatch loads the next batch. It returns a nil batch once the epoch is done.
// The first sample error aborts the batch and is returned.
func (dl *DataLoader) NextBatch(ctx context.Context) (*Batch, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	remaining := len(dl.indices) - dl.position
	if remaining <= 0 {
		return nil, nil
	}
	size := dl.batchSize
	if remaining < size {
		size = remaining
	}
	batchIndices := dl.indices[dl.position : dl.position+size]

	items := make([]cachedItem, size)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(dl.workers)
	for slot, index := range batchIndices {
		slot, index := slot, index
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			item, err := dl.load(index)
			if err != nil {
				return errors.Wrapf(err, "sample %d", index)
			}
			items[slot] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	dl.position += size

	pixels := len(items[0].data)
	batch := &Batch{
		Images: make([]float32, 0, size*pixels),
		Labels: make([]int32, size),
		Videos: make([]string, size),
		Size:   size,
	}
	for i, item := range items {
		if len(item.data) != pixels {
			return nil, errors.Errorf("sample %d has %d values, expected %d", batchIndices[i], len(item.data), pixels)
		}
		batch.Images = append(batch.Images, item.data...)
		batch.Labels[i] = item.label
		batch.Videos[i] = item.video
	}
	return batch, nil
}

// load fetches one sample, through the cache when the dataset is deterministic
func (dl *DataLoader) load(index int) (cachedItem, error) {
	if dl.cache != nil {
		if item, ok := dl.cache.get(index); ok {
			return item, nil
		}
	}

	sample, err := dl.dataset.Get(index)
	if err != nil {
		return cachedItem{}, err
	}

	tensor := sample.Tensor
	if tensor == nil {
		if sample.Image == nil {
			return cachedItem{}, errors.Errorf("sample %d carries no image", index)
		}
		tensor = preprocessing.ToTensor(sample.Image)
	}

	item := cachedItem{data: tensor.Data, label: int32(sample.Label), video: sample.Video}
	if dl.cache != nil {
		dl.cache.put(index, item)
	}
	return item, nil
}

// Progress returns the current progress through the dataset
func (dl *DataLoader) Progress() (current, total int) {
	dl.mu.Lock()
	defer dl.mu.Unlock()
	return dl.position, len(dl.indices)
}

// Stats returns cache statistics, or an empty value when caching is off
func (dl *DataLoader) Stats() CacheStats {
	if dl.cache == nil {
		return CacheStats{}
	}
	return dl.cache.Stats()
}
