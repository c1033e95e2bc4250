package cmd

import (
	"fmt"
	"runtime"
	"strings"

	semver "github.com/Masterminds/semver/v3"
	"github.com/spf13/cobra"
)

// Version will be set by build flags during release builds
var Version = "dev"

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of cw",
	Long:  "Print the version number of cw",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "cw %s (%s, %s/%s)\n", formatVersionForDisplay(Version), runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// normalizeForSemver strips a leading v/V and parses the rest. The parsed
// version is nil when raw is not semver.
func normalizeForSemver(raw string) (string, *semver.Version) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return trimmed, nil
	}
	normalized := strings.TrimPrefix(strings.TrimPrefix(trimmed, "v"), "V")
	parsed, err := semver.NewVersion(normalized)
	if err != nil {
		return normalized, nil
	}
	return normalized, parsed
}

// formatVersionForDisplay normalizes a version string for consistent display.
// Semver versions get a single "v" prefix; anything else (like "dev") is shown as is.
// Examples: "v1.0.0" -> "v1.0.0", "1.0.0" -> "v1.0.0", "dev" -> "dev", "" -> "unknown"
func formatVersionForDisplay(version string) string {
	normalized, parsed := normalizeForSemver(version)
	if normalized == "" {
		return "unknown"
	}
	if parsed == nil {
		return normalized
	}
	return "v" + parsed.String()
}
