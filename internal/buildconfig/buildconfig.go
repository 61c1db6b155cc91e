package buildconfig

// Build-time variables injected via ldflags
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Version returns the build version
func Version() string {
	return version
}

// Commit returns the git commit hash
func Commit() string {
	return commit
}

// Date returns the build date
func Date() string {
	return date
}

// VersionInfo returns full version information
func VersionInfo() map[string]string {
	return map[string]string{
		"version": version,
		"commit":  commit,
		"date":    date,
	}
}
