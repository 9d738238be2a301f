// Package buildinfo reports the version stamped into the binary at link time.
package buildinfo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
)

// Stamped by the release build, e.g.
// -ldflags "-X github.com/minutedapp/minuted/pkg/buildinfo.Version=v0.3.0".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Info is the build identity exposed on the version endpoint.
type Info struct {
	ServiceName string `json:"service_name"`
	Version     string `json:"version"`
	Commit      string `json:"commit"`
	BuildTime   string `json:"build_time"`
	GoVersion   string `json:"go_version"`
}

// Get snapshots the stamped values for the named service.
func Get(serviceName string) Info {
	return Info{
		ServiceName: serviceName,
		Version:     Version,
		Commit:      Commit,
		BuildTime:   BuildTime,
		GoVersion:   runtime.Version(),
	}
}

// String renders the version as a one-liner for CLI output.
func String() string {
	return fmt.Sprintf("%s (%s, %s)", Version, Commit, BuildTime)
}

// Handler serves the build identity as JSON.
func Handler(serviceName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(Get(serviceName)); err != nil {
			http.Error(w, "encoding failed", http.StatusInternalServerError)
		}
	}
}
