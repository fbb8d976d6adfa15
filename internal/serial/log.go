package serial

import "github.com/btcsuite/btclog/v2"

// log is the package-level subsystem logger for the serialization engine.
// Disabled by default.
var log btclog.Logger = btclog.Disabled

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger btclog.Logger) {
	log = logger
}
