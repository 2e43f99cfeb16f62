package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/devblac/dex-catalog/internal/artifact"
)

// Set by -ldflags at release time; otherwise filled from the build info.
var (
	version = "dev"
	commit  = "none"
	date    = ""
)

type buildInfo struct {
	Version   string
	Commit    string
	Date      string
	GoVersion string
	Modified  bool
}

func currentBuild() buildInfo {
	b := buildInfo{Version: version, Commit: commit, Date: date}
	if info, ok := debug.ReadBuildInfo(); ok {
		b = fromBuildInfo(b, info)
	}
	return b
}

// fromBuildInfo fills whatever ldflags left at their defaults from the
// module version and VCS stamps the toolchain embedded.
func fromBuildInfo(b buildInfo, info *debug.BuildInfo) buildInfo {
	b.GoVersion = info.GoVersion
	if b.Version == "dev" && info.Main.Version != "" && info.Main.Version != "(devel)" {
		b.Version = info.Main.Version
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "" || b.Commit == "none" {
				b.Commit = s.Value
			}
		case "vcs.time":
			if b.Date == "" {
				b.Date = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	if len(b.Commit) > 12 {
		b.Commit = b.Commit[:12]
	}
	return b
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		b := currentBuild()
		fmt.Fprintf(out, "dex-catalog %s", b.Version)
		if b.Commit != "" && b.Commit != "none" {
			fmt.Fprintf(out, " commit %s", b.Commit)
			if b.Modified {
				fmt.Fprint(out, "+dirty")
			}
		}
		if b.Date != "" {
			fmt.Fprintf(out, " built %s", b.Date)
		}
		if b.GoVersion != "" {
			fmt.Fprintf(out, " (%s)", b.GoVersion)
		}
		fmt.Fprintln(out)
		fmt.Fprintf(out, "artifacts: %s/<protocol>/<chain_id>.json, index %s\n", artifact.ProtocolsDir, artifact.IndexPath)
		return nil
	},
}
