package main

import (
	"errors"
	"os"

	"github.com/mensylisir/remoteify/cmd/remoteify/cmd"
	"github.com/mensylisir/remoteify/pkg/logger"
)

func main() {
	err := cmd.Execute()
	logger.SyncGlobal()
	if err == nil {
		return
	}
	var exitErr *cmd.ExitError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.Code)
	}
	os.Exit(1)
}
