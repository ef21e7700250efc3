// Package config loads the optional `.morty.toml` project file that
// supplies default flag values, which CLI flags then override — the same
// "file provides defaults, flags override" pattern used for project
// config elsewhere in this toolchain.
package config

import (
	"os"

	"github.com/pelletier/go-toml/v2"

	mortyerrors "github.com/pulp-platform/morty/internal/errors"
)

// File is the decoded shape of `.morty.toml`. Every field is optional; a
// zero value means "no default configured, defer to the flag's own
// default".
type File struct {
	Prefix            string            `toml:"prefix"`
	Suffix            string            `toml:"suffix"`
	IncludeDirs       []string          `toml:"include_dirs"`
	Defines           map[string]string `toml:"defines"`
	LibraryDirs       []string          `toml:"library_dirs"`
	TopModule         string            `toml:"top_module"`
	StripComments     bool              `toml:"strip_comments"`
	KeepDefines       bool              `toml:"keep_defines"`
	KeepTimescale     bool              `toml:"keep_timescale"`
	PropagateDefines  bool              `toml:"propagate_defines"`
	NoParallel        bool              `toml:"no_parallel"`
	IgnoreUnparseable bool              `toml:"ignore_unparseable"`
}

// Load reads and decodes path. A missing file is not an error — it simply
// yields an empty File, so a project without `.morty.toml` behaves exactly
// as if every flag default applied.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &File{}, nil
	}
	if err != nil {
		return nil, mortyerrors.NewInputError(path, err)
	}

	var f File
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, mortyerrors.NewInputError(path, err)
	}
	return &f, nil
}
