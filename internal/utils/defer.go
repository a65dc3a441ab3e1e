package utils

import (
	"io"

	"github.com/tessapp/ota/internal/logger"
)

// Try runs a cleanup func (typically a Close) and logs instead of failing.
func Try(fn func() error) {
	if err := fn(); err != nil {
		logger.Debug("cleanup failed: %v", err)
	}
}

func Close(c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Debug("close failed: %v", err)
	}
}
