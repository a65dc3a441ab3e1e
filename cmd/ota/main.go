package main

import (
	"os"

	cmd "github.com/tessapp/ota/internal"
	"github.com/tessapp/ota/internal/logger"
)

func main() {
	if err := cmd.Execute(); err != nil {
		logger.LogError(err.Error())
		os.Exit(1)
	}
}
