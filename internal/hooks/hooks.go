// Package hooks implements the reconciliation engine's hook runner:
// discovery of executable and TOML-declared hooks under a source tree's
// .guisu/hooks/{pre,post} directories, ordered tiered execution with a
// strict barrier between tiers, and the three gating modes (Always, Once,
// OnChange) backed by internal/store's fingerprint table.
package hooks

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sync/errgroup"

	"github.com/guisu-dev/guisu/internal/core"
	"github.com/guisu-dev/guisu/internal/path"
	"github.com/guisu-dev/guisu/internal/store"
)

// Mode gates whether a hook runs on a given pass.
type Mode int

const (
	Always Mode = iota
	Once
	OnChange
)

// Stage identifies which of the two hook directories a hook belongs to.
type Stage int

const (
	Pre Stage = iota
	Post
)

func (s Stage) dirName() string {
	if s == Pre {
		return "pre"
	}
	return "post"
}

// Hook is one discovered hook, whether declared by a TOML record or
// implied by an executable file.
type Hook struct {
	Name            string
	Order           int
	Platforms       []string
	Cmd             string
	Script          string
	ScriptContent   string
	WorkingDir      string
	Env             map[string]string
	ContinueOnError bool
	Mode            Mode
	Timeout         time.Duration
}

// id is the identity string used as the store's hook-fingerprint key:
// stable across runs as long as the hook's declared name doesn't change.
func (h Hook) id(stage Stage) string {
	return stage.dirName() + "/" + h.Name
}

func (h Hook) appliesToPlatform(goos string) bool {
	if len(h.Platforms) == 0 {
		return true
	}
	for _, p := range h.Platforms {
		if p == goos {
			return true
		}
	}
	return false
}

// tomlHookFile is the on-disk shape of a single-hook TOML file; array
// files decode into []tomlHookFile instead.
type tomlHookFile struct {
	Name            string            `toml:"name"`
	Order           int               `toml:"order"`
	Platforms       []string          `toml:"platforms"`
	Cmd             string            `toml:"cmd"`
	Script          string            `toml:"script"`
	WorkingDir      string            `toml:"working_dir"`
	Env             map[string]string `toml:"env"`
	ContinueOnError bool              `toml:"continue_on_error"`
	Mode            string            `toml:"mode"`
	TimeoutSeconds  int               `toml:"timeout_seconds"`
}

func (t tomlHookFile) toHook(defaultOrder int, sourceDir string) (Hook, error) {
	mode := Always
	switch strings.ToLower(t.Mode) {
	case "", "always":
		mode = Always
	case "once":
		mode = Once
	case "onchange", "on_change":
		mode = OnChange
	default:
		return Hook{}, fmt.Errorf("unknown hook mode %q", t.Mode)
	}

	order := t.Order
	if order == 0 {
		order = defaultOrder
	}

	h := Hook{
		Name:            t.Name,
		Order:           order,
		Platforms:       t.Platforms,
		Cmd:             t.Cmd,
		Script:          t.Script,
		WorkingDir:      t.WorkingDir,
		Env:             t.Env,
		ContinueOnError: t.ContinueOnError,
		Mode:            mode,
		Timeout:         time.Duration(t.TimeoutSeconds) * time.Second,
	}

	if h.Script != "" {
		content, err := os.ReadFile(filepath.Join(sourceDir, h.Script))
		if err == nil {
			h.ScriptContent = string(content)
		}
	}

	return h, nil
}

// Loader discovers hooks under a source tree.
type Loader struct{}

// Load walks .guisu/hooks/{pre,post} under sourceDir, sorted by filename
// within each directory. Hidden files, "~"-suffixed backups, and ".swp"
// files are skipped.
func (Loader) Load(sourceDir path.AbsPath) (pre, post []Hook, err error) {
	pre, err = loadStage(sourceDir.String(), Pre)
	if err != nil {
		return nil, nil, err
	}
	post, err = loadStage(sourceDir.String(), Post)
	if err != nil {
		return nil, nil, err
	}
	return pre, post, nil
}

func loadStage(sourceDir string, stage Stage) ([]Hook, error) {
	dir := filepath.Join(sourceDir, ".guisu", "hooks", stage.dirName())
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &core.HookConfigError{Hook: dir, Err: err}
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var hooks []Hook
	position := 0
	for _, name := range names {
		if skipHookFile(name) {
			continue
		}
		full := filepath.Join(dir, name)
		info, err := os.Stat(full)
		if err != nil {
			return nil, &core.HookConfigError{Hook: full, Err: err}
		}
		position++

		if strings.HasSuffix(name, ".toml") {
			parsed, err := loadTomlHooks(full, position*10, sourceDir)
			if err != nil {
				return nil, &core.HookConfigError{Hook: full, Err: err}
			}
			hooks = append(hooks, parsed...)
			continue
		}

		if info.Mode()&0o111 != 0 {
			hooks = append(hooks, Hook{
				Name:  name,
				Order: position * 10,
				Cmd:   full,
				Mode:  Always,
			})
		}
	}

	return hooks, nil
}

func skipHookFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}
	if strings.HasSuffix(name, "~") || strings.HasSuffix(name, ".swp") {
		return true
	}
	return false
}

func loadTomlHooks(file string, defaultOrder int, sourceDir string) ([]Hook, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}

	var single tomlHookFile
	if err := toml.Unmarshal(data, &single); err == nil && single.Name != "" {
		h, err := single.toHook(defaultOrder, sourceDir)
		if err != nil {
			return nil, err
		}
		return []Hook{h}, nil
	}

	var list []tomlHookFile
	if err := toml.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	out := make([]Hook, 0, len(list))
	for _, t := range list {
		h, err := t.toHook(defaultOrder, sourceDir)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

// Status is the terminal state of one hook execution.
type Status int

const (
	Succeeded Status = iota
	Failed
	Skipped
)

// HookResult is one hook's outcome within a stage run.
type HookResult struct {
	Hook   Hook
	Status Status
	Err    error
}

// StageResult is the outcome of running every tier of one stage.
type StageResult struct {
	Results []HookResult
	Aborted bool
}

// Runner executes hooks.
type Runner struct {
	Store *store.Store
}

// Run executes every hook in hooks, grouped by Order ascending, with a
// strict barrier between groups: a group is only started once every hook
// in the previous group has finished. Hooks within a group run
// concurrently. A failing hook with ContinueOnError == false aborts the
// stage (the remaining groups in THIS stage are skipped; the caller is
// responsible for still running the other stage, per the "post hooks run
// even if pre failed" rule).
func (r *Runner) Run(ctx context.Context, stage Stage, hooks []Hook, goos string) (StageResult, error) {
	groups := groupByOrder(hooks, goos)

	var result StageResult
	for _, group := range groups {
		if ctx.Err() != nil {
			result.Aborted = true
			return result, nil
		}

		outcomes := make([]HookResult, len(group))
		g, gctx := errgroup.WithContext(ctx)
		for i, h := range group {
			i, h := i, h
			g.Go(func() error {
				outcomes[i] = r.runOne(gctx, stage, h)
				return nil
			})
		}
		_ = g.Wait()

		result.Results = append(result.Results, outcomes...)

		for _, o := range outcomes {
			if o.Status == Failed && !o.Hook.ContinueOnError {
				result.Aborted = true
				return result, nil
			}
		}
	}

	return result, nil
}

func groupByOrder(hooks []Hook, goos string) [][]Hook {
	byOrder := map[int][]Hook{}
	var orders []int
	for _, h := range hooks {
		if !h.appliesToPlatform(goos) {
			continue
		}
		if _, ok := byOrder[h.Order]; !ok {
			orders = append(orders, h.Order)
		}
		byOrder[h.Order] = append(byOrder[h.Order], h)
	}
	sort.Ints(orders)

	groups := make([][]Hook, 0, len(orders))
	for _, o := range orders {
		groups = append(groups, byOrder[o])
	}
	return groups
}

func (r *Runner) runOne(ctx context.Context, stage Stage, h Hook) HookResult {
	id := h.id(stage)

	switch h.Mode {
	case Once:
		if _, found, err := r.Store.GetHook(id); err == nil && found {
			return HookResult{Hook: h, Status: Skipped}
		}
	case OnChange:
		fp := fingerprint(h)
		if existing, found, err := r.Store.GetHook(id); err == nil && found {
			if subtle.ConstantTimeCompare(existing.Fingerprint[:], fp[:]) == 1 {
				return HookResult{Hook: h, Status: Skipped}
			}
		}
	}

	err := execute(ctx, h)
	status := Succeeded
	if err != nil {
		status = Failed
	}

	if status == Succeeded && h.Mode != Always {
		fp := fingerprint(h)
		_ = r.Store.PutHook(id, store.HookFingerprint{Fingerprint: fp, LastRunUnix: timeNowUnix()})
	}

	return HookResult{Hook: h, Status: status, Err: err}
}

// fingerprint hashes the hook's command/script content together with its
// sorted environment pairs, so an OnChange hook re-runs exactly when its
// effective behavior could have changed.
func fingerprint(h Hook) [32]byte {
	var buf bytes.Buffer
	if h.Script != "" {
		buf.WriteString(h.ScriptContent)
	} else {
		buf.WriteString(h.Cmd)
	}

	keys := make([]string, 0, len(h.Env))
	for k := range h.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(h.Env[k])
		buf.WriteByte('\n')
	}

	return sha256.Sum256(buf.Bytes())
}

func execute(ctx context.Context, h Hook) error {
	if h.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.Timeout)
		defer cancel()
	}

	var cmd *exec.Cmd
	if h.Script != "" {
		cmd = exec.CommandContext(ctx, filepath.Join(h.WorkingDir, h.Script))
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", h.Cmd)
	}
	cmd.Dir = h.WorkingDir

	env := os.Environ()
	for k, v := range h.Env {
		env = append(env, k+"="+v)
	}
	cmd.Env = env

	return cmd.Run()
}

func timeNowUnix() int64 {
	return time.Now().Unix()
}
