package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/rendis/actionwait/internal/host"
	"github.com/rendis/actionwait/internal/wait"
)

func runInstall(args []string) {
	fs := flag.NewFlagSet("install", flag.ExitOnError)
	listenAddr := fs.String("listen-addr", ":4200", "TCP listen address")
	baseURL := fs.String("base-url", "", "public base URL for callback links (derived from listen-addr if empty)")
	dbPath := fs.String("db-path", "", "database path (default: ~/.actionwait/actionwait.db)")
	logLevel := fs.String("log-level", "info", "log level: debug, info, warn, error")
	sweep := fs.String("sweep-schedule", host.DefaultSweepSchedule, "cron schedule of the deadline sweep")
	timeout := fs.String("default-timeout", wait.DefaultTimeout.String(), "timeout of waits created without one")
	events := fs.Bool("events", true, "serve the /sse/events stream")
	mcpFlag := fs.Bool("mcp", false, "serve MCP tools on stdio")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	dir := actionwaitDir()
	if err := os.MkdirAll(dir, 0o700); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot create %s: %v\n", dir, err)
		os.Exit(1)
	}

	cfg := Config{
		ListenAddr:     *listenAddr,
		BaseURL:        *baseURL,
		LogLevel:       *logLevel,
		SweepSchedule:  *sweep,
		DefaultTimeout: *timeout,
		Events:         *events,
		MCP:            *mcpFlag,
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	} else {
		cfg.DBPath = filepath.Join(dir, "actionwait.db")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost" + cfg.ListenAddr
	}
	if err := cfg.validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	data, _ := json.MarshalIndent(cfg, "", "  ")
	path := settingsPath()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot write %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("Config written to %s\n", path)

	// Signal running server to reload, or start a new one.
	if signalRunningServer() {
		return
	}
	runServe()
}

// signalRunningServer sends SIGHUP to a running actionwait server (via pidfile).
// Returns true if the server was signaled (caller should NOT start a new one).
func signalRunningServer() bool {
	data, err := os.ReadFile(pidPath())
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Check if process is alive.
	if err := proc.Signal(syscall.Signal(0)); err != nil {
		return false
	}
	if err := proc.Signal(syscall.SIGHUP); err != nil {
		return false
	}
	fmt.Printf("Signaled running server (PID %d) to reload configuration\n", pid)
	return true
}
