package scraper

import "errors"

var (
	// ErrBlocked covers runs where the site answered but served a block page,
	// a captcha, or an empty result set. Retrying later may succeed.
	ErrBlocked = errors.New("blocked or empty result")

	// ErrTransport covers runs where no strategy managed to complete a
	// request at all (DNS, connect, timeout).
	ErrTransport = errors.New("transport failure")
)
