package main

import (
	"os"
	"path/filepath"

	"github.com/openmined/solvesync/internal/client/config"
	"github.com/openmined/solvesync/internal/utils"
	"github.com/spf13/cobra"
)

// resolveConfigPath picks the config file: the --config flag when set, then
// SOLVESYNC_CONFIG_PATH, then the first existing well-known file, then the default.
func resolveConfigPath(cmd *cobra.Command) string {
	if f := cmd.Flag("config"); f != nil && f.Changed {
		return f.Value.String()
	}
	if p := os.Getenv(envPrefix + "_CONFIG_PATH"); p != "" {
		return p
	}
	for _, candidate := range configCandidates() {
		if utils.FileExists(candidate) {
			return candidate
		}
	}
	return config.DefaultConfigPath
}

func configCandidates() []string {
	candidates := []string{config.DefaultConfigPath}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "solvesync", "config.json"))
	}
	return append(candidates, filepath.Join(home, ".config", "solvesync", "config.json"))
}
