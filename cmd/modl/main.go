// Modl CLI - runs Modl bytecode and program images
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
	"golang.org/x/term"

	"github.com/chazu/modl/manifest"
	"github.com/chazu/modl/pkg/image"
	"github.com/chazu/modl/pkg/stdlib"
	"github.com/chazu/modl/pkg/store"
	"github.com/chazu/modl/pkg/value"
	"github.com/chazu/modl/pkg/vm"
)

var log = commonlog.GetLogger("modl.cli")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options holds the parsed command line.
type options struct {
	input         string
	file          string
	stackSize     int
	callStackSize int
	silent        bool
	configDir     string
	trace         bool
	verbose       bool
	output        string
	pack          bool
	storePath     string
	hash          string
	save          bool
	list          bool

	set map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	o := &options{set: map[string]bool{}}
	fs := flag.NewFlagSet("modl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&o.input, "i", "", "Bytecode given inline, with \\xHH and \\n style escapes")
	fs.StringVar(&o.file, "f", "", "Bytecode or image file to run")
	fs.IntVar(&o.stackSize, "s", 0, "Value stack size (default 128)")
	fs.IntVar(&o.callStackSize, "c", 0, "Call stack size (default 64)")
	fs.BoolVar(&o.silent, "l", false, "Silence register monitor warnings")
	fs.StringVar(&o.configDir, "config", "", "Directory holding modl.toml (default: search upward)")
	fs.BoolVar(&o.trace, "trace", false, "Log every executed instruction")
	fs.BoolVar(&o.verbose, "v", false, "Verbose logging")
	fs.StringVar(&o.output, "o", "", "Write the program as an image to this path instead of running it")
	fs.BoolVar(&o.pack, "pack", false, "Like -o, writing to [image] output from modl.toml")
	fs.StringVar(&o.storePath, "store", "", "Image store database (default: [store] path from modl.toml)")
	fs.StringVar(&o.hash, "hash", "", "Run the stored image whose hash starts with this prefix")
	fs.BoolVar(&o.save, "save", false, "Save the program as an image in the store instead of running it")
	fs.BoolVar(&o.list, "list", false, "List the images in the store")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: modl [options]\n\n")
		fmt.Fprintf(stderr, "Runs a Modl program and prints the value it returns.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  modl -i '\\x04\\x00\\x03\\x05\\x01'    # LOADC R0, 5; RET\n")
		fmt.Fprintf(stderr, "  modl -f prog.mbc -o prog.mimg      # Pack bytecode into an image\n")
		fmt.Fprintf(stderr, "  modl -f prog.mimg -s 512 -l        # Run an image with a larger stack\n")
		fmt.Fprintf(stderr, "  modl -f prog.mbc -save -store i.db # Save into the image store\n")
		fmt.Fprintf(stderr, "  modl -hash 4bf5 -store i.db        # Run a stored image\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	fs.Visit(func(f *flag.Flag) { o.set[f.Name] = true })
	return o, nil
}

func loadManifest(o *options) (*manifest.Manifest, error) {
	if o.configDir != "" {
		return manifest.Load(o.configDir)
	}
	wd, err := os.Getwd()
	if err != nil {
		return manifest.Default(), nil
	}
	m, err := manifest.FindAndLoad(wd)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}

func configureLogging(o *options, m *manifest.Manifest) {
	verbosity := m.Log.Verbosity
	if o.verbose {
		verbosity++
	}
	if (o.trace || m.VM.Trace) && verbosity < 2 {
		verbosity = 2
	}
	commonlog.Configure(verbosity, m.LogFilePath())
}

// program is the code to run and the bounds it was packed with.
type program struct {
	name   string
	code   []byte
	limits image.Limits
}

func loadProgram(o *options, m *manifest.Manifest) (*program, error) {
	if o.hash != "" {
		return loadStored(o, m)
	}
	if o.input != "" {
		code, err := decodeEscapes(o.input)
		if err != nil {
			return nil, fmt.Errorf("-i: %w", err)
		}
		return &program{name: m.Program.Name, code: code}, nil
	}

	path := o.file
	if path == "" {
		path = m.EntryPath()
	}
	if path == "" {
		return nil, errNoInput
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	log.Infof("loaded %d bytes from %s", len(data), path)

	if !image.IsImage(data) {
		return &program{name: m.Program.Name, code: data}, nil
	}
	img, err := image.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	log.Infof("image %s (%q), %d bytes of code", img.ID, img.Name, len(img.Code))
	return &program{name: img.Name, code: img.Code, limits: img.Limits}, nil
}

var (
	errNoInput = errors.New("no program given: use -i, -f, -hash or [program] entry in modl.toml")
	errNoStore = errors.New("no image store: use -store or [store] path in modl.toml")
)

func openStore(o *options, m *manifest.Manifest) (*store.Store, error) {
	path := o.storePath
	if path == "" {
		path = m.StorePath()
	}
	if path == "" {
		return nil, errNoStore
	}
	return store.Open(path)
}

func loadStored(o *options, m *manifest.Manifest) (*program, error) {
	st, err := openStore(o, m)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	img, err := st.Get(o.hash)
	if err != nil {
		return nil, err
	}
	log.Infof("stored image %s (%q) from %s", img.ID, img.Name, st.Path())
	return &program{name: img.Name, code: img.Code, limits: img.Limits}, nil
}

// vmConfig layers the bounds: manifest, then image limits, then flags.
func vmConfig(o *options, m *manifest.Manifest, p *program) vm.Config {
	cfg := vm.Config{
		StackSize:     m.VM.StackSize,
		CallStackSize: m.VM.CallStackSize,
		MaxExternals:  m.VM.MaxExternals,
		Silent:        m.VM.Silent || o.silent,
		Trace:         m.VM.Trace || o.trace,
	}
	if p.limits.StackSize > 0 {
		cfg.StackSize = p.limits.StackSize
	}
	if p.limits.CallStackSize > 0 {
		cfg.CallStackSize = p.limits.CallStackSize
	}
	if o.set["s"] {
		cfg.StackSize = o.stackSize
	}
	if o.set["c"] {
		cfg.CallStackSize = o.callStackSize
	}
	return cfg
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	m, err := loadManifest(o)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	configureLogging(o, m)

	if o.list {
		return listImages(o, m, stdout, stderr)
	}

	p, err := loadProgram(o, m)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, errNoInput) {
			return 2
		}
		return 1
	}

	if o.save {
		return save(p, o, m, stdout, stderr)
	}
	if out := outputPath(o, m); out != "" {
		return pack(out, p, o, stdout, stderr)
	}
	if o.pack {
		fmt.Fprintf(stderr, "Error: -pack needs [image] output in modl.toml\n")
		return 1
	}

	cfg := vmConfig(o, m, p)
	if cfg.StackSize < 1 || cfg.CallStackSize < 2 {
		fmt.Fprintf(stderr, "Error: stack size must be positive and call stack size at least 2\n")
		return 1
	}

	machine := vm.New(cfg)
	defer func() {
		if err := machine.Close(); err != nil {
			log.Debugf("close: %v", err)
		}
	}()

	if err := stdlib.Install(machine, stdlib.Options{Out: stdout}); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	result, err := machine.Run(p.code)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintln(stdout, render(result, isTerminal(stdout)))
	return 0
}

// outputPath returns the image to write instead of running, if any.
func outputPath(o *options, m *manifest.Manifest) string {
	switch {
	case o.output != "":
		return o.output
	case o.pack && m.Image.Output != "":
		return m.ImageOutputPath()
	}
	return ""
}

// packedImage builds the image for p, with bound flags overriding the
// limits it was loaded with.
func packedImage(p *program, o *options) *image.Image {
	limits := p.limits
	if o.set["s"] {
		limits.StackSize = o.stackSize
	}
	if o.set["c"] {
		limits.CallStackSize = o.callStackSize
	}
	return image.New(p.name, p.code, limits)
}

func pack(path string, p *program, o *options, stdout, stderr io.Writer) int {
	img := packedImage(p, o)
	if err := image.WriteFile(path, img); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Wrote %s (%d bytes of code, id %s)\n", path, len(p.code), img.ID)
	return 0
}

func save(p *program, o *options, m *manifest.Manifest, stdout, stderr io.Writer) int {
	st, err := openStore(o, m)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer st.Close()

	hash, err := st.Put(packedImage(p, o))
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "Saved %s to %s\n", hash, st.Path())
	return 0
}

func listImages(o *options, m *manifest.Manifest, stdout, stderr io.Writer) int {
	st, err := openStore(o, m)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer st.Close()

	entries, err := st.List()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(stdout, "%s  %-16s %6d  %s\n", e.Hash[:12], name, e.Size, e.Created.Format("2006-01-02 15:04:05"))
	}
	return 0
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// render formats the program result, colored by type on a terminal.
func render(v value.Value, color bool) string {
	s := stdlib.Display(v)
	if !color {
		return s
	}
	switch v.Type() {
	case value.Nil:
		return "\x1b[37;1m" + s + "\x1b[0m"
	case value.Integer, value.Floating:
		return "\x1b[33m" + s + "\x1b[0m"
	case value.String:
		return "\x1b[32m" + s + "\x1b[0m"
	}
	return s
}
