package decision

import "errors"

// Sentinel errors for decision matrix types.
var (
	ErrUnknownCategory = errors.New("unknown transformation tier")
	ErrInvalidVersion  = errors.New("invalid matrix version identifier")
)
