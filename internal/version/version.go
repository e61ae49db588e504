package version

// Version is the current version of the quantsim engine.
// Release builds override it with ldflags:
// -ldflags "-X github.com/quantsim-lab/quantsim/internal/version.Version=v1.2.3"
// Setting it to "main" marks a development build, which skips the
// compatibility check.
var Version = "v1.0.0"

// GetVersion returns the current version of the engine.
func GetVersion() string {
	return Version
}
