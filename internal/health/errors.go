package health

import "errors"

var errSessionCapacity = errors.New("session capacity reached")
