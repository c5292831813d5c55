package recommend

import "errors"

// ErrInsufficientWardrobe marks an owner whose wardrobe yields no
// outfit. Generate treats it as success; it only classifies outcomes.
var ErrInsufficientWardrobe = errors.New("insufficient wardrobe")
