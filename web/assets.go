// Package web provides the embedded page served by the live monitor.
//
// The dist/ directory is embedded at build time. During development, if
// dist/ exists on the filesystem, it is served instead so the page can be
// edited without rebuilding.
package web

import (
	"embed"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed dist/*
var assets embed.FS

// GetAssets returns a filesystem containing the monitor page. If devPath
// names an existing directory it is served live; otherwise the embedded copy
// is used. An empty devPath disables the live lookup.
func GetAssets(devPath string) fs.FS {
	if devPath != "" {
		if stat, err := os.Stat(devPath); err == nil && stat.IsDir() {
			return os.DirFS(devPath)
		}
	}

	subFS, err := fs.Sub(assets, "dist")
	if err != nil {
		panic("failed to access embedded web assets: " + err.Error())
	}
	return subFS
}

// GetAssetsWithBase looks for a live dist/ under baseDir/web before falling
// back to the embedded assets.
func GetAssetsWithBase(baseDir string) fs.FS {
	return GetAssets(filepath.Join(baseDir, "web", "dist"))
}
