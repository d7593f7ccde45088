package server

import "context"

// Server defines the interface for the SIP proxy process
type Server interface {
	Start() error
	Stop() error
	LoadConfig(filename string) error
	Run(ctx context.Context) error
	RunWithSignalHandling() error
}

// Console reads operator commands and returns once the operator asks to quit.
// An error means the console is gone (for example stdin was closed) and no
// quit request will ever arrive.
type Console interface {
	WaitForQuit() error
}
