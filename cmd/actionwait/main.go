package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		runServe()
		return
	}
	switch os.Args[1] {
	case "serve":
		runServe()
	case "install":
		runInstall(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: actionwait [command]

Commands:
  serve     run the callback server, deadline sweeper and optional MCP tools (default)
  install   write ~/.actionwait/settings.json and start or reload the server
  version   print the version
`)
}
