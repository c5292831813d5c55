package wardrobe

import "errors"

// Sentinel kinds for wardrobe errors.
var (
	ErrForeignItem = errors.New("item belongs to another owner")
	ErrEmptyOwner  = errors.New("owner id must not be empty")
)
