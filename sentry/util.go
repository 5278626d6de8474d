package sentry

import "os"

// terminateProcess ends the process, standing in for the default
// disposition an uncaught foreign exception or terminal user report would
// trigger. A var so tests can substitute a non-exiting stand-in.
var terminateProcess = os.Exit
