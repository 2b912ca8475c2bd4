// Package version carries the build metadata stamped in with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/dl-alexandre/gdm/pkg/version.Version=v1.2.0"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// Info describes the running binary
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

func Get() *Info {
	return &Info{
		Version:   Version,
		GitCommit: GitCommit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func (i *Info) String() string {
	return fmt.Sprintf("gdm %s (%s) built %s, %s %s", i.Version, i.GitCommit, i.BuildTime, i.GoVersion, i.Platform)
}

// UserAgent identifies gdm in the User-Agent of Drive API requests
func (i *Info) UserAgent() string {
	return fmt.Sprintf("gdm/%s (%s)", i.Version, i.Platform)
}
