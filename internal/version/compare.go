package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckCompatibility reports whether the running engine satisfies the
// semver constraint a run configuration declares, e.g. ">=1.0.0" or
// "~1.2". An empty constraint always passes, as does a "main"
// development build.
func CheckCompatibility(constraint string) error {
	if constraint == "" {
		return nil
	}

	engineVersion := strings.TrimPrefix(Version, "v")

	// Skip version check for "main" (development builds)
	if engineVersion == "main" {
		return nil
	}

	engineSemver, err := semver.NewVersion(engineVersion)
	if err != nil {
		return fmt.Errorf("invalid engine version '%s': %w", engineVersion, err)
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("invalid engine_version constraint '%s': %w", constraint, err)
	}

	if !c.Check(engineSemver) {
		return fmt.Errorf("engine version %s does not satisfy constraint %s", engineVersion, constraint)
	}

	return nil
}
