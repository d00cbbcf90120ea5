package model

import "golang.org/x/xerrors"

var (
	// ErrEmptyClip is a usage error: the clip has no frames.
	ErrEmptyClip = xerrors.New("clip has no frames")
	// ErrMissingArtifact is returned when a frame or mask file is absent or unreadable.
	ErrMissingArtifact = xerrors.New("missing or malformed artifact")
	// ErrUnsetSlot means a frame was never covered by a window.
	ErrUnsetSlot = xerrors.New("accumulator slot is unset")
	// ErrShapeMismatch is returned when a backend answers with an unexpected tensor shape.
	ErrShapeMismatch = xerrors.New("tensor shape mismatch")
)
