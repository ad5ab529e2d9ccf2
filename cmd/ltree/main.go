package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/temirov/ltree/internal/cli"
	"github.com/temirov/ltree/internal/commands"
	"github.com/temirov/ltree/internal/utils"
)

const (
	exitCodeDegraded = 1
	exitCodeFatal    = 2
)

// main is the entry point for the ltree command.
func main() {
	loggerInstance, loggerInitializationError := utils.NewApplicationLogger(utils.DefaultLogLevel)
	if loggerInitializationError != nil {
		panic(fmt.Errorf(utils.LoggerInitializationFailedMessageFormat, loggerInitializationError))
	}
	applicationExecutionError := cli.Execute()
	if applicationExecutionError == nil {
		return
	}
	loggerInstance.Error(utils.ApplicationExecutionFailedMessage + ": " + applicationExecutionError.Error())
	_ = loggerInstance.Sync()
	if errors.Is(applicationExecutionError, commands.ErrDegraded) {
		os.Exit(exitCodeDegraded)
	}
	os.Exit(exitCodeFatal)
}
