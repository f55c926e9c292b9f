package runtime

import "errors"

var errNoResponder = errors.New("no responder configured")
