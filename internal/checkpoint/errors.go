package checkpoint

import (
	"errors"
)

// Sentinel error kinds for checkpoint files.
var (
	ErrNotFound     = errors.New("checkpoint not found")
	ErrCorrupt      = errors.New("checkpoint corrupt")
	ErrIncompatible = errors.New("checkpoint incompatible with model")
)
