package pdf

import (
	"errors"
	"fmt"
)

// ErrFallbackPage is returned when a fallback engine cannot read a page
var ErrFallbackPage = errors.New("fallback engine cannot read page")

// recoverPanic converts a panic raised inside a third-party reader into
// an error for the page being extracted
func recoverPanic(engine string, page int, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: page %d: panic: %v", engine, page, r)
	}
}
