package types

import (
	"fmt"
	"time"
)

const (
	ColumnOpen   = "open"
	ColumnHigh   = "high"
	ColumnLow    = "low"
	ColumnClose  = "close"
	ColumnVolume = "volume"
)

type Bar struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// BarRef identifies a bar by its position in a Series and its timestamp.
type BarRef struct {
	Index int       `json:"index"`
	Time  time.Time `json:"time"`
}

// Series is an ordered OHLCV dataset. Timestamps are strictly increasing.
type Series struct {
	bars []Bar
}

// NewSeries validates bar ordering and wraps the bars. The slice is not copied.
func NewSeries(bars []Bar) (*Series, error) {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("bar %d (%s) is not after bar %d (%s)",
				i, bars[i].Timestamp.Format(time.RFC3339), i-1, bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return &Series{bars: bars}, nil
}

// MustSeries is NewSeries for fixtures that are known to be ordered.
func MustSeries(bars []Bar) *Series {
	s, err := NewSeries(bars)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.bars)
}

func (s *Series) Bars() []Bar {
	if s == nil {
		return nil
	}
	return s.bars
}

func (s *Series) Bar(i int) Bar {
	return s.bars[i]
}

func (s *Series) Ref(i int) BarRef {
	return BarRef{Index: i, Time: s.bars[i].Timestamp}
}

// Column returns a fresh copy of the named OHLCV column.
func (s *Series) Column(name string) ([]float64, bool) {
	var pick func(Bar) float64
	switch name {
	case ColumnOpen:
		pick = func(b Bar) float64 { return b.Open }
	case ColumnHigh:
		pick = func(b Bar) float64 { return b.High }
	case ColumnLow:
		pick = func(b Bar) float64 { return b.Low }
	case ColumnClose:
		pick = func(b Bar) float64 { return b.Close }
	case ColumnVolume:
		pick = func(b Bar) float64 { return b.Volume }
	default:
		return nil, false
	}

	bars := s.Bars()
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = pick(b)
	}
	return out, true
}

// IsColumn reports whether name is one of the OHLCV columns.
func IsColumn(name string) bool {
	switch name {
	case ColumnOpen, ColumnHigh, ColumnLow, ColumnClose, ColumnVolume:
		return true
	}
	return false
}

// Signals holds the entry and exit boolean series, index aligned with a Series.
type Signals struct {
	Entry []bool
	Exit  []bool
}

// NewSignals returns all-false signals of length n.
func NewSignals(n int) Signals {
	return Signals{
		Entry: make([]bool, n),
		Exit:  make([]bool, n),
	}
}
