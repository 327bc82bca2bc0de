package search

import "errors"

var errNoProcessor = errors.New("search: no processor configured")
