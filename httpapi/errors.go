package httpapi

import "errors"

var errNotANumber = errors.New("httpapi: not a positive integer")
