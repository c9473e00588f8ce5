package training

// AverageMeter keeps the latest value and a weighted running average of a scalar
// such as loss or accuracy. It is not safe for concurrent use.
type AverageMeter struct {
	Val   float64
	Sum   float64
	Count float64
	Avg   float64
}

// NewAverageMeter returns a zeroed meter
func NewAverageMeter() *AverageMeter {
	return &AverageMeter{}
}

// Reset zeroes every field
func (m *AverageMeter) Reset() {
	m.Val = 0
	m.Sum = 0
	m.Count = 0
	m.Avg = 0
}

// Update records val with weight n (usually the batch size). Updating an empty
// meter with n == 0 leaves Avg as NaN.
func (m *AverageMeter) Update(val float64, n int) {
	m.Val = val
	m.Sum += val * float64(n)
	m.Count += float64(n)
	m.Avg = m.Sum / m.Count
}
