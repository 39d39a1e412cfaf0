package journal

import "errors"

var ErrEventNotFound = errors.New("outbox event not found or already processed")
