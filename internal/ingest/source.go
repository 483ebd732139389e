package ingest

import (
	"path/filepath"
	"slices"

	"github.com/roach88/puget/internal/config"
)

// FileSource describes where the partitions of a table live.
// Only SinglePattern and ExplicitManifest implement this.
type FileSource interface {
	fileSource() // Sealed - only these types implement it
}

// SinglePattern names one file that exists in every partition directory
// under a data directory.
type SinglePattern struct {
	Filename string
}

func (SinglePattern) fileSource() {}

// ExplicitManifest maps partition names to file paths.
type ExplicitManifest map[string]string

func (ExplicitManifest) fileSource() {}

// Partition is one file of a table.
type Partition struct {
	Name string
	Path string
}

// Manifest lists the partitions of a table in read order.
type Manifest []Partition

// Resolve turns a FileSource into a Manifest.
//
// A SinglePattern requires dataDir and paths and yields one partition per
// path, in path order. An ExplicitManifest must not be combined with
// dataDir or paths and yields its partitions sorted by name.
func Resolve(src FileSource, dataDir string, paths []string) (Manifest, error) {
	switch s := src.(type) {
	case SinglePattern:
		if dataDir == "" {
			return nil, config.MissingKey("data_dir")
		}
		if len(paths) == 0 {
			return nil, config.MissingKey("paths")
		}
		m := make(Manifest, len(paths))
		for i, p := range paths {
			m[i] = Partition{Name: p, Path: filepath.Join(dataDir, p, s.Filename)}
		}
		return m, nil
	case ExplicitManifest:
		if dataDir != "" || len(paths) > 0 {
			return nil, config.InvalidValue("files", "an explicit file list cannot be combined with data_dir or paths")
		}
		if len(s) == 0 {
			return nil, config.InvalidValue("files", "file list is empty")
		}
		names := make([]string, 0, len(s))
		for n := range s {
			names = append(names, n)
		}
		slices.Sort(names)
		m := make(Manifest, len(names))
		for i, n := range names {
			m[i] = Partition{Name: n, Path: s[n]}
		}
		return m, nil
	default:
		return nil, config.InvalidValue("files", "unsupported file source %T", src)
	}
}

// SourceFor returns the FileSource a table configuration describes,
// falling back to defaultFile when neither file nor files is set.
func SourceFor(tc config.TableConfig, defaultFile string) FileSource {
	if len(tc.Files) > 0 {
		return ExplicitManifest(tc.Files)
	}
	if tc.File != "" {
		return SinglePattern{Filename: tc.File}
	}
	return SinglePattern{Filename: defaultFile}
}
