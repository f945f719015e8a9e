package cli

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// buildInfo describes the running binary. Version, commit, and build date
// come from -ldflags; binaries built without them (go install, go run)
// recover the commit from the VCS metadata Go embeds.
type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Built     string `json:"built"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func resolveBuildInfo(version, commit, date string) buildInfo {
	if commit == "" || commit == "none" {
		if bi, ok := debug.ReadBuildInfo(); ok {
			for _, s := range bi.Settings {
				switch s.Key {
				case "vcs.revision":
					commit = s.Value
				case "vcs.time":
					if date == "" || date == "unknown" {
						date = s.Value
					}
				}
			}
		}
	}
	return buildInfo{
		Version:   version,
		Commit:    commit,
		Built:     date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

func newVersionCmd(version, commit, date string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := resolveBuildInfo(version, commit, date)

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "folio %s\n", info.Version)
			fmt.Fprintf(cmd.OutOrStdout(), "  commit:   %s\n", info.Commit)
			fmt.Fprintf(cmd.OutOrStdout(), "  built:    %s\n", info.Built)
			fmt.Fprintf(cmd.OutOrStdout(), "  go:       %s\n", info.GoVersion)
			fmt.Fprintf(cmd.OutOrStdout(), "  platform: %s\n", info.Platform)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	return cmd
}
