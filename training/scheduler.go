package training

// PlateauMode selects whether the monitored metric should go down or up
type PlateauMode string

const (
	PlateauMin PlateauMode = "min" // loss-like metrics
	PlateauMax PlateauMode = "max" // accuracy-like metrics
)

// ReduceLROnPlateau lowers the learning rate once the monitored metric has not
// improved for Patience epochs in a row
type ReduceLROnPlateau struct {
	Factor    float64 // Multiplier applied to the learning rate on a plateau
	Patience  int     // Epochs without improvement tolerated before reducing
	Threshold float64 // Minimum change that counts as an improvement
	Mode      PlateauMode

	bestMetric  float64
	badEpochs   int
	currentLR   float64
	initialized bool
}

// NewReduceLROnPlateau creates a plateau scheduler starting at lr. Out of range
// arguments fall back to factor 0.1, patience 10, threshold 1e-4 and PlateauMin.
func NewReduceLROnPlateau(lr, factor float64, patience int, threshold float64, mode PlateauMode) *ReduceLROnPlateau {
	if factor <= 0 || factor >= 1 {
		factor = 0.1
	}
	if patience <= 0 {
		patience = 10
	}
	if threshold < 0 {
		threshold = 1e-4
	}
	if mode != PlateauMin && mode != PlateauMax {
		mode = PlateauMin
	}

	return &ReduceLROnPlateau{
		Factor:    factor,
		Patience:  patience,
		Threshold: threshold,
		Mode:      mode,
		currentLR: lr,
	}
}

// Step records the metric of one epoch and returns the learning rate to use next,
// and whether it was just reduced
func (s *ReduceLROnPlateau) Step(metric float64) (float64, bool) {
	if !s.initialized {
		s.bestMetric = metric
		s.initialized = true
		return s.currentLR, false
	}

	var improved bool
	if s.Mode == PlateauMin {
		improved = metric < s.bestMetric-s.Threshold
	} else {
		improved = metric > s.bestMetric+s.Threshold
	}

	if improved {
		s.bestMetric = metric
		s.badEpochs = 0
		return s.currentLR, false
	}

	s.badEpochs++
	if s.badEpochs <= s.Patience {
		return s.currentLR, false
	}
	s.currentLR *= s.Factor
	s.badEpochs = 0
	return s.currentLR, true
}

// LR returns the current learning rate
func (s *ReduceLROnPlateau) LR() float64 {
	return s.currentLR
}

// BestTracker decides whether an epoch produced the best checkpoint so far
type BestTracker struct {
	best float64
}

// NewBestTracker starts from a previous best Prec@1, 0 for a fresh run
func NewBestTracker(best float64) *BestTracker {
	return &BestTracker{best: best}
}

// Observe reports whether prec1 beats the best value seen so far and keeps the max
func (b *BestTracker) Observe(prec1 float64) bool {
	if prec1 > b.best {
		b.best = prec1
		return true
	}
	return false
}

// Best returns the highest Prec@1 observed
func (b *BestTracker) Best() float64 {
	return b.best
}
