package analyzer

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBuildArgs(t *testing.T) {
	args := BuildArgs("analyzer.py", `C:\data\finance.db`,
		time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC))

	want := []string{"analyzer.py", "--db", `C:\data\finance.db`, "--from", "2025-02-01", "--to", "2025-03-15"}
	if strings.Join(args, "|") != strings.Join(want, "|") {
		t.Fatalf("BuildArgs = %q, want %q", args, want)
	}

	line := strings.Join(args, " ")
	pos := -1
	for _, s := range []string{"--db", `C:\data\finance.db`, "--from", "2025-02-01", "--to", "2025-03-15"} {
		i := strings.Index(line[pos+1:], s)
		if i < 0 {
			t.Fatalf("%q missing or out of order in %q", s, line)
		}
		pos += i + 1
	}
}

func TestBuildArgs_IgnoresTimeOfDayAndZone(t *testing.T) {
	zone := time.FixedZone("UTC+3", 3*3600)
	args := BuildArgs("a.py", "db", time.Date(2025, 1, 31, 23, 59, 0, 0, zone), time.Date(2025, 2, 1, 0, 1, 0, 0, zone))
	if args[4] != "2025-01-31" || args[6] != "2025-02-01" {
		t.Fatalf("unexpected dates %q", args)
	}
}

func TestResolveInterpreter(t *testing.T) {
	found := func(names ...string) func(string) (string, error) {
		return func(name string) (string, error) {
			for _, n := range names {
				if n == name {
					return "/usr/bin/" + name, nil
				}
			}
			return "", errors.New("not found")
		}
	}

	t.Run("no venv prefers python3", func(t *testing.T) {
		base := t.TempDir()
		if got := resolveInterpreter(base, "linux", found("python3", "python")); got != "python3" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("no venv falls back to python", func(t *testing.T) {
		base := t.TempDir()
		if got := resolveInterpreter(base, "linux", found("python")); got != "python" {
			t.Fatalf("got %q", got)
		}
		if got := resolveInterpreter(base, "linux", found()); got != "python" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("windows without venv", func(t *testing.T) {
		base := t.TempDir()
		if got := resolveInterpreter(base, "windows", found("python3", "python")); got != "python" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("unix venv", func(t *testing.T) {
		base := t.TempDir()
		venv := filepath.Join(base, "PythonApp", "venv", "bin", "python")
		writeFile(t, venv)
		if got := resolveInterpreter(base, "linux", found("python3")); got != venv {
			t.Fatalf("got %q, want %q", got, venv)
		}
	})

	t.Run("windows venv", func(t *testing.T) {
		base := t.TempDir()
		venv := filepath.Join(base, "PythonApp", "venv", "Scripts", "python.exe")
		writeFile(t, venv)
		if got := resolveInterpreter(base, "windows", found("python")); got != venv {
			t.Fatalf("got %q, want %q", got, venv)
		}
	})
}

func TestEntryPointPath(t *testing.T) {
	base := filepath.Join("opt", "ledger")
	if got, want := EntryPointPath(base, ""), filepath.Join(base, "PythonApp", "analyzer.py"); got != want {
		t.Errorf("default entry = %q, want %q", got, want)
	}
	abs, _ := filepath.Abs(filepath.Join("bin", "ledger-analyzer"))
	if got := EntryPointPath(base, abs); got != abs {
		t.Errorf("absolute entry = %q, want %q", got, abs)
	}
}

func TestCommandLine(t *testing.T) {
	base := t.TempDir()
	req := Request{DBPath: "f.db", From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), To: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)}

	script := NewRunner(Config{BaseDir: base, Interpreter: "py"}, nil)
	name, args := script.CommandLine(req)
	if name != "py" || args[0] != script.EntryPoint() || len(args) != 7 {
		t.Fatalf("script command line = %q %q", name, args)
	}

	native := NewRunner(Config{BaseDir: base, EntryPoint: filepath.Join("bin", "ledger-analyzer")}, nil)
	name, args = native.CommandLine(req)
	if name != filepath.Join(base, "bin", "ledger-analyzer") || len(args) != 6 || args[0] != "--db" {
		t.Fatalf("native command line = %q %q", name, args)
	}
}

func TestNewRunnerDefaults(t *testing.T) {
	r := NewRunner(Config{BaseDir: t.TempDir()}, nil)
	cfg := r.Config()
	if cfg.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", cfg.Timeout, DefaultTimeout)
	}
	if cfg.DrainGrace != DefaultDrainGrace {
		t.Errorf("drain grace = %v, want %v", cfg.DrainGrace, DefaultDrainGrace)
	}
	if cfg.EntryPoint != DefaultEntryPoint {
		t.Errorf("entry point = %q, want %q", cfg.EntryPoint, DefaultEntryPoint)
	}
}

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, nil, 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
}
