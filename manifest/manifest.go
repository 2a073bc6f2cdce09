// Package manifest handles modl.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FileName is the name of the configuration file.
const FileName = "modl.toml"

// Manifest represents a modl.toml configuration.
type Manifest struct {
	Program Program     `toml:"program"`
	VM      VMConfig    `toml:"vm"`
	Log     LogConfig   `toml:"log"`
	Image   ImageConfig `toml:"image"`
	Store   StoreConfig `toml:"store"`

	// Dir is the directory containing the modl.toml file (set at load time).
	Dir string `toml:"-"`
}

// Program names the program and its entry file.
type Program struct {
	Name  string `toml:"name"`
	Entry string `toml:"entry"`
}

// VMConfig sets VM bounds and diagnostics.
type VMConfig struct {
	StackSize     int  `toml:"stack-size"`
	CallStackSize int  `toml:"call-stack-size"`
	MaxExternals  int  `toml:"max-externals"`
	Silent        bool `toml:"silent"`
	Trace         bool `toml:"trace"`
}

// LogConfig configures the commonlog backend.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// ImageConfig configures image output.
type ImageConfig struct {
	Output string `toml:"output"`
}

// StoreConfig locates the image store database.
type StoreConfig struct {
	Path string `toml:"path"`
}

// Default returns the configuration used when no modl.toml exists.
func Default() *Manifest {
	return &Manifest{
		VM: VMConfig{
			StackSize:     128,
			CallStackSize: 64,
			MaxExternals:  64,
		},
	}
}

// Parse decodes modl.toml content over the defaults.
func Parse(data []byte) (*Manifest, error) {
	m := Default()
	if _, err := toml.Decode(string(data), m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// Load parses the modl.toml file in the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// FindAndLoad walks up from startDir to find a modl.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}

// Validate rejects bounds the VM cannot run with.
func (m *Manifest) Validate() error {
	switch {
	case m.VM.StackSize < 1:
		return fmt.Errorf("vm.stack-size must be positive, got %d", m.VM.StackSize)
	case m.VM.CallStackSize < 2:
		return fmt.Errorf("vm.call-stack-size must be at least 2, got %d", m.VM.CallStackSize)
	case m.VM.MaxExternals < 1:
		return fmt.Errorf("vm.max-externals must be positive, got %d", m.VM.MaxExternals)
	case m.Log.Verbosity < 0:
		return fmt.Errorf("log.verbosity must not be negative, got %d", m.Log.Verbosity)
	}
	return nil
}

// EntryPath returns the absolute path of the entry program, or "" if none
// is configured.
func (m *Manifest) EntryPath() string {
	if m.Program.Entry == "" {
		return ""
	}
	if filepath.IsAbs(m.Program.Entry) {
		return m.Program.Entry
	}
	return filepath.Join(m.Dir, m.Program.Entry)
}

// LogFilePath returns the log file path relative to the manifest
// directory, or nil to log to stderr.
func (m *Manifest) LogFilePath() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.Log.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.Dir, path)
	}
	return &path
}

// ImageOutputPath returns the configured image path relative to the
// manifest directory.
func (m *Manifest) ImageOutputPath() string {
	if m.Image.Output == "" || filepath.IsAbs(m.Image.Output) {
		return m.Image.Output
	}
	return filepath.Join(m.Dir, m.Image.Output)
}

// StorePath returns the image store path relative to the manifest
// directory, or "" if none is configured.
func (m *Manifest) StorePath() string {
	if m.Store.Path == "" || filepath.IsAbs(m.Store.Path) {
		return m.Store.Path
	}
	return filepath.Join(m.Dir, m.Store.Path)
}
