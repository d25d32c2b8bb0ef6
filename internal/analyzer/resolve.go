package analyzer

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"ledger/internal/core"
)

const (
	// AppDir holds the analyzer script and its virtual environment.
	AppDir = "PythonApp"

	// DefaultTimeout bounds a single analyzer run.
	DefaultTimeout = 15 * time.Second

	// DefaultDrainGrace is how long output is still collected after the child
	// was killed for exceeding its timeout.
	DefaultDrainGrace = 2 * time.Second

	// Flag names of the analyzer command line.
	FlagDB   = "--db"
	FlagFrom = "--from"
	FlagTo   = "--to"
)

// DefaultEntryPoint is the analyzer script, relative to the base directory.
var DefaultEntryPoint = filepath.Join(AppDir, "analyzer.py")

// DefaultBaseDir returns the directory of the running executable, or "." when
// it cannot be determined.
func DefaultBaseDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}

// EntryPointPath joins entry to baseDir unless it is already absolute.
func EntryPointPath(baseDir, entry string) string {
	if entry == "" {
		entry = DefaultEntryPoint
	}
	if filepath.IsAbs(entry) {
		return entry
	}
	return filepath.Join(baseDir, entry)
}

// ResolveInterpreter picks the Python interpreter for baseDir: the
// application-local virtual environment if present, otherwise a system
// interpreter found on PATH.
func ResolveInterpreter(baseDir string) string {
	return resolveInterpreter(baseDir, runtime.GOOS, exec.LookPath)
}

func resolveInterpreter(baseDir, goos string, lookPath func(string) (string, error)) string {
	venv := filepath.Join(baseDir, AppDir, "venv", "bin", "python")
	candidates := []string{"python3", "python"}
	if goos == "windows" {
		venv = filepath.Join(baseDir, AppDir, "venv", "Scripts", "python.exe")
		candidates = []string{"python"}
	}
	if info, err := os.Stat(venv); err == nil && !info.IsDir() {
		return venv
	}
	for _, name := range candidates {
		if _, err := lookPath(name); err == nil {
			return name
		}
	}
	return "python"
}

// BuildArgs returns the analyzer arguments in wire order. Dates use the fixed
// yyyy-MM-dd layout regardless of locale.
func BuildArgs(entry, dbPath string, from, to time.Time) []string {
	return []string{
		entry,
		FlagDB, dbPath,
		FlagFrom, from.Format(core.DateLayout),
		FlagTo, to.Format(core.DateLayout),
	}
}

// isScript reports whether entry needs an interpreter.
func isScript(entry string) bool {
	return strings.EqualFold(filepath.Ext(entry), ".py")
}
