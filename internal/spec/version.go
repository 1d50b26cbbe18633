package spec

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// SupportedSchema is the schema_version written by this release.
const SupportedSchema = "v1"

var supported = func() *semver.Constraints {
	c, err := semver.NewConstraint("^1")
	if err != nil {
		panic(err)
	}
	return c
}()

// CheckSchemaVersion accepts any 1.x version ("v1", "1", "1.2"). An empty
// version is taken as v1.
func CheckSchemaVersion(v string) error {
	if v == "" {
		return nil
	}
	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("schema_version %q: %w", v, err)
	}
	if !supported.Check(ver) {
		return fmt.Errorf("schema_version %q not supported (want %s)", v, SupportedSchema)
	}
	return nil
}
