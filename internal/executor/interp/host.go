package interp

import (
	"fmt"
	"os"
	"reflect"

	yaegi "github.com/traefik/yaegi/interp"

	"github.com/sakif/mapchat/internal/executor/artifact"
)

// HostImportPath is the import path under which executed code sees the
// host's artifact helpers:
//
//	host.OutputDir()                      → "./map_output"
//	host.ArtifactPath("20240101")         → "map_output/temp_map_20240101.html"
//	host.WriteArtifact("20240101", html)  → writes and returns that path
const HostImportPath = "github.com/sakif/mapchat/host"

// hostSymbols builds the yaegi export table for the host package. Keys are
// "<import path>/<package name>".
func hostSymbols(cfg artifact.Config) yaegi.Exports {
	outputDir := func() string { return cfg.Dir }
	artifactPath := func(name string) string { return cfg.PathFor(name) }
	writeArtifact := func(name, content string) (string, error) {
		if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
			return "", fmt.Errorf("host: creating output directory: %w", err)
		}
		path := cfg.PathFor(name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return "", fmt.Errorf("host: writing artifact: %w", err)
		}
		return path, nil
	}

	return yaegi.Exports{
		HostImportPath + "/host": {
			"OutputDir":     reflect.ValueOf(outputDir),
			"ArtifactPath":  reflect.ValueOf(artifactPath),
			"WriteArtifact": reflect.ValueOf(writeArtifact),
		},
	}
}
