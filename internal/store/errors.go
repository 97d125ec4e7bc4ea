package store

import "errors"

var (
	ErrVisitNotFound    = errors.New("visit not found")
	ErrStepNotFound     = errors.New("step not found")
	ErrEventChainBroken = errors.New("visit event chain broken")
)
