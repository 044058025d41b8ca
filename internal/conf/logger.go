package conf

import "github.com/tphakala/strainbot/internal/logger"

// GetLogger returns the configuration module logger. It is looked up on every
// call because configuration is loaded before the central logger is installed.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
