package compiler

import "fmt"

// UnknownIndicatorError is returned for an indicator name that is not registered.
type UnknownIndicatorError struct {
	Name string
}

func (e *UnknownIndicatorError) Error() string {
	return fmt.Sprintf("unknown indicator %q", e.Name)
}

// UnknownSeriesError is returned for a series that is not an OHLCV column.
type UnknownSeriesError struct {
	Name string
}

func (e *UnknownSeriesError) Error() string {
	return fmt.Sprintf("unknown series %q, expected one of open, high, low, close, volume", e.Name)
}

// TypeMismatchError is returned when a node produces the wrong kind of series for
// where it is used, e.g. an AND inside a comparison.
type TypeMismatchError struct {
	Node string
	Want Kind
	Got  Kind
	Msg  string
}

func (e *TypeMismatchError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("type mismatch in %s: %s", e.Node, e.Msg)
	}
	return fmt.Sprintf("type mismatch in %s: expected %s, got %s", e.Node, e.Want, e.Got)
}

// InvalidParameterError covers out of range lags and periods and unknown operators.
type InvalidParameterError struct {
	Node string
	Msg  string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Node, e.Msg)
}
