package tlscred

import "errors"

// ErrBadCAFile is returned when a CA certificate file cannot be parsed as
// PEM-encoded certificates.
var ErrBadCAFile = errors.New("tlscred: no certificates found in CA file")
