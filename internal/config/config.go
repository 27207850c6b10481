// Package config holds the immutable per-run Config:
// JSON-on-disk, atomically written, following the teacher project's
// internal/config package (plain structs, json tags, a Default*
// constructor per sub-config, os.Rename-based atomic persistence) rather
// than pulling in a config-management library.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// WorktreeConfig configures worktree creation and init commands.
type WorktreeConfig struct {
	PathTemplate       string   `json:"path_template"`
	InitCommands       []string `json:"init_commands"`
	ContinueOnFailure  bool     `json:"continue_on_failure"`
}

// SessionConfig configures the multiplexer session shell and background tasks.
type SessionConfig struct {
	Shell            string            `json:"shell"`
	TmuxPrefix       string            `json:"tmux_prefix"`
	BackgroundTasks  []BackgroundTask  `json:"background_tasks"`
}

// BackgroundTask is one entry of session.backgroundTasks: a named
// command run in its own window, gated on the init marker.
type BackgroundTask struct {
	Name    string `json:"name"`
	Command string `json:"command"`
}

// PortBinding declares one environment variable a dev server expects its
// allocated port injected as, plus a DefaultPort value. DefaultPort is
// decoded but not read by the Dev Server Manager or by recovery-from-scan.
// The toml tags let internal/formula decode this same struct straight
// out of a *.devserver.toml file.
type PortBinding struct {
	EnvVar      string `json:"env_var" toml:"env_var"`
	DefaultPort int    `json:"default_port" toml:"default_port"`
}

// DevServerDef is one entry of devServer.servers.
type DevServerDef struct {
	Name    string        `json:"name"`
	Command string        `json:"command"`
	Ports   []PortBinding `json:"ports"`
}

// DevServerConfig configures the set of dev servers available per task.
type DevServerConfig struct {
	Servers []DevServerDef `json:"servers"`
}

// WorkflowMode enumerates git.workflowMode values.
type WorkflowMode string

const (
	WorkflowLocal  WorkflowMode = "local"
	WorkflowOrigin WorkflowMode = "origin"
)

// GitConfig configures the git workflow.
type GitConfig struct {
	WorkflowMode      WorkflowMode `json:"workflow_mode"`
	PushBranchOnCreate bool        `json:"push_branch_on_create"`
	PushEnabled       bool         `json:"push_enabled"`
	FetchEnabled      bool         `json:"fetch_enabled"`
	BaseBranch        string       `json:"base_branch"`
	Remote            string       `json:"remote"`
	BranchPrefix      string       `json:"branch_prefix"`
}

// PRConfig configures GitHub PR creation on complete().
type PRConfig struct {
	Enabled   bool `json:"enabled"`
	AutoDraft bool `json:"auto_draft"`
	AutoMerge bool `json:"auto_merge"`
}

// PollingConfig holds two periodic-tick intervals. BeadsRefreshMS sets the
// Coordinator's issue-refresh tick. SessionMonitorMS is not read; Session
// Monitors poll at monitor.DefaultPollInterval.
type PollingConfig struct {
	BeadsRefreshMS    int `json:"beads_refresh_ms"`
	SessionMonitorMS  int `json:"session_monitor_ms"`
}

// Config is the immutable per-run configuration.
type Config struct {
	Worktree     WorktreeConfig  `json:"worktree"`
	Session      SessionConfig   `json:"session"`
	DevServer    DevServerConfig `json:"dev_server"`
	Git          GitConfig       `json:"git"`
	PR           PRConfig        `json:"pr"`
	BeadsSync    bool            `json:"beads_sync_enabled"`
	Polling      PollingConfig   `json:"polling"`
	Theme        string          `json:"theme"`
	PortRangeLow  int            `json:"port_range_low"`
	PortRangeHigh int            `json:"port_range_high"`
}

// Default returns the documented built-in defaults.
func Default() *Config {
	return &Config{
		Worktree: WorktreeConfig{
			PathTemplate:      "../{project}-{bead-id}",
			InitCommands:      []string{"direnv allow"},
			ContinueOnFailure: true,
		},
		Session: SessionConfig{
			Shell:      "zsh",
			TmuxPrefix: "C-a",
		},
		Git: GitConfig{
			WorkflowMode:       WorkflowOrigin,
			PushBranchOnCreate: true,
			PushEnabled:        true,
			FetchEnabled:       true,
			BaseBranch:         "main",
			Remote:             "origin",
			BranchPrefix:       "az-",
		},
		PR: PRConfig{
			Enabled:   true,
			AutoDraft: true,
			AutoMerge: false,
		},
		BeadsSync: true,
		Polling: PollingConfig{
			BeadsRefreshMS:   30000,
			SessionMonitorMS: 500,
		},
		Theme:         "auto",
		PortRangeLow:  9000,
		PortRangeHigh: 9999,
	}
}

// FileName is the name of the per-project config file.
const FileName = ".azedarach.json"

// Load reads FileName from projectPath, overlaying it onto Default() so
// missing fields fall back to documented defaults. A missing file is not
// an error — Default() is returned as-is.
func Load(projectPath string) (*Config, error) {
	cfg := Default()
	path := filepath.Join(projectPath, FileName)
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save atomically writes cfg to projectPath/.azedarach.json, writing to a
// temp file and renaming over the target so a crash mid-write can never
// corrupt the config (mirrors the teacher's util.AtomicWriteJSON).
func Save(projectPath string, cfg *Config) error {
	path := filepath.Join(projectPath, FileName)
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
