package renderer

import "fmt"

// EngineError is a failure inside the render engine
type EngineError struct {
	Err error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("render failed: %v", e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }
