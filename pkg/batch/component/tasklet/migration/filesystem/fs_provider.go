package filesystem

import (
	"embed"
	"io/fs"

	"github.com/tigerroll/hourglass/pkg/batch/support/util/logger"
)

//go:embed resource
var rawFrameworkMigrationFS embed.FS

// ProvideFrameworkMigrationsFS exposes the embedded framework migration
// scripts as an fs.FS rooted at the per-dialect directories.
func ProvideFrameworkMigrationsFS() fs.FS {
	subFS, err := fs.Sub(rawFrameworkMigrationFS, "resource")
	if err != nil {
		// Cannot happen unless the embedded 'resource' directory is missing.
		logger.Fatalf("Failed to create subdirectory for framework migration FS: %v", err)
	}
	return subFS
}

// NewAllMigrationFS assembles the named migration filesystem map consumed by
// the bootstrap migration hook.
func NewAllMigrationFS(frameworkFS fs.FS) map[string]fs.FS {
	return map[string]fs.FS{
		"frameworkMigrationsFS": frameworkFS,
	}
}
