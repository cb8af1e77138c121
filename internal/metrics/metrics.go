package metrics

type Counter interface {
	Inc()
}

type Gauge interface {
	Set(v float64)
}

type Metrics struct {
	CyclesStarted   Counter
	CyclesFinalized Counter
	LegsSucceeded   Counter
	LegsFailed      Counter
	StrayResults    Counter
	SubmitFailed    Counter
	KeeperErrors    Counter
	TradesRemaining Gauge
}

type noopCounter struct{}

func (noopCounter) Inc() {}

type noopGauge struct{}

func (noopGauge) Set(float64) {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		CyclesStarted:   n,
		CyclesFinalized: n,
		LegsSucceeded:   n,
		LegsFailed:      n,
		StrayResults:    n,
		SubmitFailed:    n,
		KeeperErrors:    n,
		TradesRemaining: noopGauge{},
	}
}
