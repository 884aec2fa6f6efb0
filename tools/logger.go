package tools

import (
	"fmt"
	stdio "io"
	"log"
	"os"
	"time"
)

const logTimestampLayout = "2006-01-02 15.04:05.000"

// progress messages are kept apart from the glog diagnostics
var outputLogger = log.New(os.Stdout, "", 0)

var isEnabled = true
var printTimestamp = true

func DisableLogger() {
	isEnabled = false
}

func DisableLoggerTimestamp() {
	printTimestamp = false
}

// Redirects the progress messages, stdout by default
func SetLoggerOutput(w stdio.Writer) {
	outputLogger.SetOutput(w)
}

// Prints a progress message. Operands are joined as by fmt.Sprint.
func LogOutput(val ...interface{}) {
	if !isEnabled {
		return
	}
	message := fmt.Sprint(val...)
	if printTimestamp {
		message = "[" + time.Now().Format(logTimestampLayout) + "] " + message
	}
	outputLogger.Print(message)
}

func LogOutputf(format string, args ...interface{}) {
	LogOutput(fmt.Sprintf(format, args...))
}
