package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrNoPresentation  = errors.New("no presentation loaded")
	ErrSlideNotFound   = errors.New("slide not found")
	ErrStepUnknown     = errors.New("unknown step")
	ErrStepUnavailable = errors.New("step unavailable")
	ErrStepBusy        = errors.New("step already processing")
)
