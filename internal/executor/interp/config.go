package interp

import (
	"fmt"

	"github.com/sakif/mapchat/internal/executor/artifact"
)

// Config holds the configuration for an interpreter session.
type Config struct {
	// Artifacts is the output contract exposed to executed code through the
	// host package.
	Artifacts artifact.Config
	// PreImports are packages imported into the session when it is created,
	// so cells can use them without an import statement.
	PreImports []string
}

// DefaultConfig pre-imports the packages visualization code reaches for
// most often, plus the host package.
func DefaultConfig() Config {
	return Config{
		Artifacts: artifact.DefaultConfig(),
		PreImports: []string{
			"fmt",
			"math",
			"os",
			"path/filepath",
			"strings",
			"time",
			HostImportPath,
		},
	}
}

// Validate checks the artifact contract.
func (c Config) Validate() error {
	if err := c.Artifacts.Validate(); err != nil {
		return fmt.Errorf("interp: %w", err)
	}
	return nil
}
