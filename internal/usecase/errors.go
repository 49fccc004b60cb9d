package usecase

import "errors"

var errNoGenerator = errors.New("generation service is not configured")
