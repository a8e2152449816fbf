package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidParameters marks validator rejections. Nothing was sent to
	// the exchange.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrRunNotFound is returned for status/stop/cancel on an unknown run id.
	ErrRunNotFound = errors.New("run not found")
)

func invalidParams(err error) error {
	return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
}
