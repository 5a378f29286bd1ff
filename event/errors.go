package event

import "errors"

// ErrStopPropagation stops event propagation (not considered an error)
// When a listener returns this error, subsequent listeners do not execute,
// but Dispatch does not return an error
var ErrStopPropagation = errors.New("stop propagation")
