package series

import "errors"

var (
	// ErrUnknownColumn is returned when a channel is not part of a series.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrInvalidWindow is returned for smoothing windows that are not positive and odd.
	ErrInvalidWindow = errors.New("window must be a positive odd integer")
	// ErrColumnMismatch is returned when a row does not match the series column count.
	ErrColumnMismatch = errors.New("value count does not match columns")
	// ErrInvalidGrid is returned for non-positive bucket widths.
	ErrInvalidGrid = errors.New("grid width must be positive")
)
