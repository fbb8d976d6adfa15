package reactor

import "github.com/btcsuite/btclog/v2"

// log is the package-level logger used by the reactor subsystem. It
// defaults to a disabled logger so importers that never call UseLogger
// don't pay for formatting work.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the subsystem logger used by this package. Should be
// called once during daemon startup, before any Reactor is constructed.
func UseLogger(logger btclog.Logger) {
	log = logger
}
