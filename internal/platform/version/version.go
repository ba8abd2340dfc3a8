// Package version reports the build stamp of the binary
package version

// BuildInfo is the build stamp surfaced by --version and /healthz
type BuildInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// Set at link time:
// -ldflags "-X 'github.com/zinonweke/linear-notion-sync/internal/platform/version.version=v0.1.0'
// -X 'github.com/zinonweke/linear-notion-sync/internal/platform/version.commit=abcd'"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Info returns the build stamp
func Info() BuildInfo {
	return BuildInfo{
		Service: "linear-notion-sync",
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}

// String renders the stamp on one line
func (b BuildInfo) String() string {
	return b.Version + " (" + b.Commit + ", " + b.Date + ")"
}
