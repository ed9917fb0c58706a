// Package indicators holds the rolling indicators available to rule expressions.
//
// Vector functions take an ordered series and return a series of the same length.
// Positions where the indicator is not yet available are NaN. Invalid periods
// (<= 0) return nil. All functions are pure.
package indicators

import "math"

// MovingAverage returns the simple moving average: out[i] = mean(s[i-period+1..i]).
func MovingAverage(s []float64, period int) []float64 {
	if period <= 0 {
		return nil
	}
	out := make([]float64, len(s))
	sma := NewSMA(period)
	for i, v := range s {
		sma.Update(v)
		if sma.Ready() {
			out[i] = sma.Value()
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}

// RelativeStrengthIndex uses simple rolling means of gains and losses over period.
// The first period positions are NaN. A zero average loss gives 100.
func RelativeStrengthIndex(s []float64, period int) []float64 {
	if period <= 0 {
		return nil
	}
	out := make([]float64, len(s))
	gains := NewSMA(period)
	losses := NewSMA(period)
	for i := range s {
		if i == 0 {
			out[i] = math.NaN()
			continue
		}
		delta := s[i] - s[i-1]
		gains.Update(math.Max(delta, 0))
		losses.Update(math.Max(-delta, 0))

		if !gains.Ready() {
			out[i] = math.NaN()
			continue
		}
		out[i] = rsi(gains.Value(), losses.Value())
	}
	return out
}

func rsi(avgGain, avgLoss float64) float64 {
	if math.IsNaN(avgGain) || math.IsNaN(avgLoss) {
		return math.NaN()
	}
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

// ExponentialMovingAverage returns an EMA with alpha = 2/(period+1), seeded with the
// simple average of the first period available values. Leading NaNs are skipped and
// a NaN later in the series restarts the warmup.
func ExponentialMovingAverage(s []float64, period int) []float64 {
	if period <= 0 {
		return nil
	}
	out := make([]float64, len(s))
	ema := NewEMA(period)
	for i, v := range s {
		if math.IsNaN(v) {
			ema.Reset()
			out[i] = math.NaN()
			continue
		}
		ema.Update(v)
		if ema.Ready() {
			out[i] = ema.Value()
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}
