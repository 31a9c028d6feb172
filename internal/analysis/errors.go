package analysis

import "errors"

var (
	// ErrSourceRead is returned when the input bytes are not a readable workbook.
	ErrSourceRead = errors.New("source read error")
	// ErrDataFormat is returned when required columns or placeholders are missing or malformed.
	ErrDataFormat = errors.New("data format error")
	// ErrInsufficientData is returned when a series is too short for the requested statistic.
	ErrInsufficientData = errors.New("insufficient data")
)
