package cmd

import (
	"fmt"
	"runtime/debug"
	"strings"
)

const (
	defaultVersion    = "dev"
	defaultCommitHash = "none"
	defaultBuildDate  = "unknown"
	develVersion      = "(devel)"
)

type buildInfo struct {
	mainVersion string
	vcsRevision string
	vcsTime     string
}

func readBuildInfo() buildInfo {
	info, ok := debug.ReadBuildInfo()
	if !ok || info == nil {
		return buildInfo{}
	}

	data := buildInfo{mainVersion: info.Main.Version}
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			data.vcsRevision = setting.Value
			if len(data.vcsRevision) > 12 {
				data.vcsRevision = data.vcsRevision[:12]
			}
		case "vcs.time":
			data.vcsTime = setting.Value
		}
	}
	return data
}

func resolveVersionInfo(v, c, d string, bi buildInfo) (string, string, string) {
	if (v == "" || v == defaultVersion) && bi.mainVersion != "" && bi.mainVersion != develVersion {
		v = bi.mainVersion
	}
	if (c == "" || c == defaultCommitHash) && bi.vcsRevision != "" {
		c = bi.vcsRevision
	}
	if (d == "" || d == defaultBuildDate) && bi.vcsTime != "" {
		d = bi.vcsTime
	}
	return cmpOr(v, defaultVersion), cmpOr(c, defaultCommitHash), cmpOr(d, defaultBuildDate)
}

func cmpOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func formatVersionLine(v, c, d string) string {
	var metadata []string
	if c != defaultCommitHash {
		metadata = append(metadata, "commit: "+c)
	}
	if d != defaultBuildDate {
		metadata = append(metadata, "built: "+d)
	}
	if len(metadata) == 0 {
		return fmt.Sprintf("timeslice %s", v)
	}
	return fmt.Sprintf("timeslice %s (%s)", v, strings.Join(metadata, ", "))
}
