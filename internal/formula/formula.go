// Package formula loads dev-server and background-task templates from
// *.devserver.toml and *.task.toml files, the way the teacher project's formula package
// parses molecule templates: a thin TOML decode into plain structs, no
// templating engine of its own.
package formula

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/azedarach/azedarach/internal/config"
)

// DevServer is the on-disk shape of a dev-server formula file
// (*.devserver.toml), decoded straight into a config.DevServerDef.
type DevServer struct {
	Name    string               `toml:"name"`
	Command string               `toml:"command"`
	Ports   []config.PortBinding `toml:"ports"`
}

// BackgroundTask is the on-disk shape of a background-task formula file.
type BackgroundTask struct {
	Name    string `toml:"name"`
	Command string `toml:"command"`
}

// LoadDevServers reads every *.devserver.toml file directly under dir
// (missing dir is not an error — formulas are optional) and returns them
// as config.DevServerDef, sorted by name for deterministic merge order.
func LoadDevServers(dir string) ([]config.DevServerDef, error) {
	paths, err := glob(dir, "*.devserver.toml")
	if err != nil {
		return nil, err
	}
	defs := make([]config.DevServerDef, 0, len(paths))
	for _, p := range paths {
		var d DevServer
		if _, err := toml.DecodeFile(p, &d); err != nil {
			return nil, fmt.Errorf("parsing dev server formula %s: %w", p, err)
		}
		defs = append(defs, config.DevServerDef{Name: d.Name, Command: d.Command, Ports: d.Ports})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs, nil
}

// LoadBackgroundTasks reads every *.task.toml file directly under dir.
func LoadBackgroundTasks(dir string) ([]config.BackgroundTask, error) {
	paths, err := glob(dir, "*.task.toml")
	if err != nil {
		return nil, err
	}
	tasks := make([]config.BackgroundTask, 0, len(paths))
	for _, p := range paths {
		var t BackgroundTask
		if _, err := toml.DecodeFile(p, &t); err != nil {
			return nil, fmt.Errorf("parsing background task formula %s: %w", p, err)
		}
		tasks = append(tasks, config.BackgroundTask{Name: t.Name, Command: t.Command})
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].Name < tasks[j].Name })
	return tasks, nil
}

func glob(dir, pattern string) ([]string, error) {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return nil, nil
	}
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("globbing %s in %s: %w", pattern, dir, err)
	}
	return matches, nil
}

// Merge appends any formula-defined dev servers/background tasks whose
// name isn't already present in cfg, so a hand-edited .azedarach.json
// always wins over formula files for a given name.
func Merge(cfg *config.Config, dir string) error {
	servers, err := LoadDevServers(dir)
	if err != nil {
		return err
	}
	tasks, err := LoadBackgroundTasks(dir)
	if err != nil {
		return err
	}

	known := map[string]bool{}
	for _, s := range cfg.DevServer.Servers {
		known[s.Name] = true
	}
	for _, s := range servers {
		if !known[s.Name] {
			cfg.DevServer.Servers = append(cfg.DevServer.Servers, s)
		}
	}

	knownTasks := map[string]bool{}
	for _, t := range cfg.Session.BackgroundTasks {
		knownTasks[t.Name] = true
	}
	for _, t := range tasks {
		if !knownTasks[t.Name] {
			cfg.Session.BackgroundTasks = append(cfg.Session.BackgroundTasks, t)
		}
	}
	return nil
}
