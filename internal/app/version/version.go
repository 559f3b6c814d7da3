package version

import "fmt"

// Overridden at build time with
// -ldflags "-X ipcrawl/internal/app/version.buildVersion=... -X ipcrawl/internal/app/version.builtAt=...".
var (
	buildVersion = "dev"
	builtAt      = "unknown"
)

// Info describes the running build.
type Info struct {
	BuildVersion string `json:"build_version"`
	BuiltAt      string `json:"built_at"`
}

func Get() Info {
	return Info{
		BuildVersion: buildVersion,
		BuiltAt:      builtAt,
	}
}

func (i Info) String() string {
	return fmt.Sprintf("%s (built %s)", i.BuildVersion, i.BuiltAt)
}
