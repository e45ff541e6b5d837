package cache

import "errors"

// ErrUnsupportedDriver is returned by New for unknown drivers.
var ErrUnsupportedDriver = errors.New("unsupported cache driver")
