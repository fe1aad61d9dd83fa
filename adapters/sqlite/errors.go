package sqlite

import "github.com/Moneyman334/codex-wallet-sub000/ports"

// ErrNotFound is returned when a requested record does not exist. It is the
// shared ports sentinel so callers can distinguish absence from
// infrastructure failure with errors.Is.
var ErrNotFound = ports.ErrNotFound
