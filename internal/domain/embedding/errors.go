package embedding

import (
	"errors"
	"fmt"
)

// Sentinel kinds for embedding errors.
var (
	ErrImageDecode = errors.New("image decode failed")
	ErrShape       = errors.New("backbone shape mismatch")

	errEmptyImage = errors.New("empty image data")
)

// DecodeError reports an unreadable image. It matches ErrImageDecode.
type DecodeError struct {
	Ref string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode image %q: %v", e.Ref, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Is reports ErrImageDecode as a match.
func (e *DecodeError) Is(target error) bool { return target == ErrImageDecode }
