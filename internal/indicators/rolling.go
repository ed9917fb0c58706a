package indicators

import (
	"math"

	"github.com/jwtly10/tradedsl/internal/logging"
)

var (
	emaLog = logging.New("ema")
	smaLog = logging.New("sma")
)

// EMA - Exponential Moving Average, seeded with the simple average of the first period values
type EMA struct {
	period int
	value  float64
	alpha  float64
	seen   int
	seed   float64
}

func NewEMA(period int) *EMA {
	return &EMA{
		period: period,
		alpha:  2.0 / float64(period+1),
	}
}

func (e *EMA) Update(price float64) {
	if e.seen < e.period {
		e.seed += price
		e.seen++
		if e.seen == e.period {
			e.value = e.seed / float64(e.period)
			emaLog.Debug("EMA initialized", "period", e.period, "price", price, "value", e.value)
		}
		return
	}

	oldValue := e.value
	e.value = (price * e.alpha) + (e.value * (1 - e.alpha))
	emaLog.Debug("EMA updated", "period", e.period, "price", price, "oldValue", oldValue, "newValue", e.value)
}

// Reset discards all history, the next Update starts a new warmup.
func (e *EMA) Reset() {
	e.value, e.seen, e.seed = 0, 0, 0
}

func (e *EMA) Value() float64 {
	return e.value
}

func (e *EMA) Ready() bool {
	return e.seen >= e.period
}

// SMA - Simple Moving Average over the last period values.
// The window grows with the input, so a period longer than the data costs nothing.
type SMA struct {
	period int
	values []float64
	sum    float64 // of the non-NaN values in the window
	nans   int
}

func NewSMA(period int) *SMA {
	return &SMA{period: period}
}

func (s *SMA) Update(price float64) {
	s.add(price, 1)
	s.values = append(s.values, price)
	if len(s.values) > s.period {
		s.add(s.values[0], -1)
		s.values = s.values[1:]
	}
	if smaLog.Enabled() {
		smaLog.Debug("SMA updated", "period", s.period, "price", price, "value", s.Value(), "ready", s.Ready())
	}
}

func (s *SMA) add(v float64, sign int) {
	if math.IsNaN(v) {
		s.nans += sign
		return
	}
	s.sum += float64(sign) * v
}

// Value is the mean of the current window. A NaN anywhere in the window makes it NaN.
func (s *SMA) Value() float64 {
	if len(s.values) == 0 {
		return 0
	}
	if s.nans > 0 {
		return math.NaN()
	}
	return s.sum / float64(len(s.values))
}

func (s *SMA) Ready() bool {
	return len(s.values) >= s.period
}
