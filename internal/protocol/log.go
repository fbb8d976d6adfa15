package protocol

import "github.com/btcsuite/btclog/v2"

// log is the package-level subsystem logger for the writer/reader state
// machines. Disabled by default.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
