package relationship

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned when a table argument is missing or unnamed.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAnalysisFailed matches every *AnalysisError.
	ErrAnalysisFailed = errors.New("relationship analysis failed")
)

// AnalysisError reports a fault found while inspecting the internals of a table pair.
type AnalysisError struct {
	Source string
	Target string
	Err    error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("failed to analyze relationship between %s and %s: %v", e.Source, e.Target, e.Err)
}

func (e *AnalysisError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrAnalysisFailed) match any AnalysisError.
func (e *AnalysisError) Is(target error) bool {
	return target == ErrAnalysisFailed
}
