package sheetdb

import "github.com/tphakala/strainbot/internal/logger"

func getLogger() logger.Logger {
	return logger.Global().Module("sheetdb")
}
