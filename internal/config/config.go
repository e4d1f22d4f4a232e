package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/Zuo-Peng/cs/internal/parse"
	"github.com/Zuo-Peng/cs/internal/resume"
	"github.com/Zuo-Peng/cs/internal/session"
)

type Source struct {
	History        string   `toml:"history"`
	Roots          []string `toml:"roots"`
	ResumeCommands []string `toml:"resume_commands"`
	Disabled       bool     `toml:"disabled"`
}

type Config struct {
	CachePath        string `toml:"cache_path"`
	LogFile          string `toml:"log_file"`
	HashFingerprints bool   `toml:"hash_fingerprints"`
	Claude           Source `toml:"claude"`
	Codex            Source `toml:"codex"`

	// Path is the file the config was read from, empty when none existed.
	Path string `toml:"-"`
}

// Defaults mirrors where the two tools keep their files. CLAUDE_CONFIG_DIR
// and CODEX_HOME move them the same way they move the tools themselves.
func Defaults(home string, getenv func(string) string) *Config {
	claudeHome := filepath.Join(home, ".claude")
	if v := getenv("CLAUDE_CONFIG_DIR"); v != "" {
		claudeHome = v
	}
	codexHome := filepath.Join(home, ".codex")
	if v := getenv("CODEX_HOME"); v != "" {
		codexHome = v
	}
	stateDir := filepath.Join(home, ".local", "state", "cs")
	if v := getenv("XDG_STATE_HOME"); v != "" {
		stateDir = filepath.Join(v, "cs")
	}

	return &Config{
		CachePath: filepath.Join(stateDir, "session-cache-v2.db"),
		LogFile:   filepath.Join(stateDir, "cs.log"),
		Claude: Source{
			History:        filepath.Join(claudeHome, "history.jsonl"),
			Roots:          []string{filepath.Join(claudeHome, "projects")},
			ResumeCommands: []string{"cc", "claude"},
		},
		Codex: Source{
			History: filepath.Join(codexHome, "history.jsonl"),
			Roots: []string{
				filepath.Join(codexHome, "sessions"),
				filepath.Join(codexHome, "archived_sessions"),
			},
			ResumeCommands: []string{"c", "codex"},
		},
	}
}

// DefaultPath is ~/.config/cs/config.toml, or $CS_CONFIG when set.
func DefaultPath(home string, getenv func(string) string) string {
	if v := getenv("CS_CONFIG"); v != "" {
		return v
	}
	if v := getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "cs", "config.toml")
	}
	return filepath.Join(home, ".config", "cs", "config.toml")
}

// LoadFrom decodes cfgPath over the defaults. A missing file is not an error.
func LoadFrom(home, cfgPath string, getenv func(string) string) (*Config, error) {
	cfg := Defaults(home, getenv)

	if _, err := os.Stat(cfgPath); err == nil {
		md, err := toml.DecodeFile(cfgPath, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("parse config %s: unknown keys %s", cfgPath, strings.Join(keys, ", "))
		}
		cfg.Path = cfgPath
	}

	// expand ~ in paths
	cfg.CachePath = expandHome(cfg.CachePath, home)
	cfg.LogFile = expandHome(cfg.LogFile, home)
	for _, src := range []*Source{&cfg.Claude, &cfg.Codex} {
		src.History = expandHome(src.History, home)
		for i := range src.Roots {
			src.Roots[i] = expandHome(src.Roots[i], home)
		}
	}

	if cfg.CachePath == "" {
		return nil, fmt.Errorf("parse config %s: cache_path must not be empty", cfgPath)
	}
	return cfg, nil
}

// Readers returns reader settings for every enabled source.
func (c *Config) Readers() map[session.Source]parse.Config {
	m := make(map[session.Source]parse.Config, 2)
	if !c.Claude.Disabled {
		m[session.ClaudeCode] = parse.Config{History: c.Claude.History, Roots: c.Claude.Roots}
	}
	if !c.Codex.Disabled {
		m[session.Codex] = parse.Config{History: c.Codex.History, Roots: c.Codex.Roots}
	}
	return m
}

func (c *Config) Resume() resume.Config {
	return resume.Config{Claude: c.Claude.ResumeCommands, Codex: c.Codex.ResumeCommands}
}

func (c *Config) Source(src session.Source) Source {
	if src == session.Codex {
		return c.Codex
	}
	return c.Claude
}

func expandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}
