package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sync/errgroup"

	"github.com/guisu-dev/guisu/internal/path"
)

// LoadVariables assembles the renderer context's variable set: every
// top-level *.toml file under variables/, each wrapped under a key named
// by its file stem, then the same pass over variables/<platform>/*.toml
// overwriting same-stem keys. File loads within each pass run concurrently
// (bounded), the Go analogue of the original's parallel-file-load pattern;
// the two passes themselves are strictly sequential so platform overrides
// are deterministic regardless of goroutine scheduling.
func LoadVariables(guisuDir path.AbsPath) (map[string]any, error) {
	base, err := loadVariableDir(filepath.Join(guisuDir.String(), "variables"))
	if err != nil {
		return nil, err
	}

	overrides, err := loadVariableDir(filepath.Join(guisuDir.String(), "variables", runtime.GOOS))
	if err != nil {
		return nil, err
	}

	for k, v := range overrides {
		base[k] = v
	}
	return base, nil
}

func loadVariableDir(dir string) (map[string]any, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]any{}, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	results := make([]any, len(names))
	var g errgroup.Group
	g.SetLimit(8)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			v, err := loadVariableFile(filepath.Join(dir, name))
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]any, len(names))
	for i, name := range names {
		stem := strings.TrimSuffix(name, ".toml")
		out[stem] = results[i]
	}
	return out, nil
}

func loadVariableFile(p string) (any, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	// Round-trip through JSON so the value tree only contains types a
	// template renderer's context needs to handle (map/slice/string/
	// float64/bool/nil), matching the original's toml::Value -> JSON
	// conversion.
	b, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}
