package vm

import "github.com/tliron/commonlog"

// NumRegisters is the size of the register file.
const NumRegisters = 16

// Defaults for Config.
const (
	DefaultStackSize     = 128
	DefaultCallStackSize = 64
	DefaultMaxExternals  = 64
)

// Config fixes the resource bounds of a VM at construction.
type Config struct {
	StackSize     int  // maximum value stack depth
	CallStackSize int  // maximum call frames, including the root frame
	MaxExternals  int  // maximum registered host routines
	Silent        bool // suppress register monitor warnings
	Trace         bool // log every instruction at debug level

	// Logger receives diagnostics. Defaults to the "modl.vm" logger.
	Logger commonlog.Logger
}

// DefaultConfig returns the default bounds.
func DefaultConfig() Config {
	return Config{
		StackSize:     DefaultStackSize,
		CallStackSize: DefaultCallStackSize,
		MaxExternals:  DefaultMaxExternals,
	}
}

func (c Config) withDefaults() Config {
	if c.StackSize <= 0 {
		c.StackSize = DefaultStackSize
	}
	if c.CallStackSize <= 0 {
		c.CallStackSize = DefaultCallStackSize
	}
	if c.MaxExternals <= 0 {
		c.MaxExternals = DefaultMaxExternals
	}
	if c.Logger == nil {
		c.Logger = commonlog.GetLogger("modl.vm")
	}
	return c
}
