package main

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// version is stamped at release time:
//
//	go build -ldflags "-X main.version=v1.0.0" ./cmd/actionwait/
var version = "dev"

// versionString describes the binary, adding the VCS revision for dev builds.
func versionString() string {
	s := fmt.Sprintf("actionwait %s (%s)", version, runtime.Version())
	if version != "dev" {
		return s
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return s
	}
	for _, kv := range info.Settings {
		if kv.Key == "vcs.revision" && len(kv.Value) >= 7 {
			return fmt.Sprintf("%s rev %s", s, kv.Value[:7])
		}
	}
	return s
}

func printVersion() {
	fmt.Println(versionString())
}
