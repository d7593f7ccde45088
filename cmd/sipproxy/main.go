package main

import (
	"flag"
	"log"
	"os"

	"braces.dev/errtrace"

	"github.com/zurustar/sipproxy/internal/server"
)

func main() {
	var configFile = flag.String("config", "config.yaml", "Configuration file path (empty for defaults)")
	var consoleFlag = flag.Bool("console", true, "Read operator commands from stdin")
	flag.Parse()

	var opts []server.Option
	if *consoleFlag {
		opts = append(opts, server.WithConsole(server.NewConsole(os.Stdin)))
	}
	sipServer := server.NewSIPServer(opts...)

	if err := sipServer.LoadConfig(*configFile); err != nil {
		log.Fatalf("Failed to load configuration: %s", errtrace.FormatString(err))
	}

	// Run server with signal handling
	if err := sipServer.RunWithSignalHandling(); err != nil {
		log.Fatalf("Server error: %s", errtrace.FormatString(err))
	}
}
