package training

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// EpochGauges exposes the last recorded epoch of each mode as Prometheus gauges
type EpochGauges struct {
	epoch  *prometheus.GaugeVec
	values *prometheus.GaugeVec
}

// NewEpochGauges registers the gauges on reg
func NewEpochGauges(reg prometheus.Registerer) (*EpochGauges, error) {
	g := &EpochGauges{
		epoch: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ucf_epoch",
			Help: "Last recorded epoch number",
		}, []string{"mode"}),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ucf_epoch_metric",
			Help: "Last recorded per-epoch metric value",
		}, []string{"mode", "metric"}),
	}

	for _, c := range []prometheus.Collector{g.epoch, g.values} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "failed to register epoch gauges")
		}
	}
	return g, nil
}

// Observe sets the gauges from info
func (g *EpochGauges) Observe(info EpochInfo, mode Mode) {
	m := string(mode)
	g.epoch.WithLabelValues(m).Set(float64(info.Epoch))
	g.values.WithLabelValues(m, "batch_time").Set(info.BatchTime)
	if mode == ModeTrain {
		g.values.WithLabelValues(m, "data_time").Set(info.DataTime)
	}
	g.values.WithLabelValues(m, "loss").Set(info.Loss)
	g.values.WithLabelValues(m, "prec1").Set(info.Prec1)
	g.values.WithLabelValues(m, "prec5").Set(info.Prec5)
}
