package reconcile

import "errors"

var ErrInvalidConfig = errors.New("invalid_reconciler_config")
