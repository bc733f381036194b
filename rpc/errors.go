package rpc

import "errors"

// ErrServerShutdown is returned by RequestCall once ShutdownAndNotify has
// been called and no further calls will arrive.
var ErrServerShutdown = errors.New("rpc: server is shutting down")
