package engine

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"chessai/internal/errors"
)

// FallbackPath is where Debian-style packages install Stockfish.
const FallbackPath = "/usr/games/stockfish"

// Locator finds an engine binary: a file next to the working directory,
// then the system PATH, then FallbackPath.
type Locator struct {
	Dir      string
	Name     string
	LookPath func(file string) (string, error)
	Fallback string
}

// DefaultLocator searches for stockfish the way the server does at startup.
func DefaultLocator() Locator {
	name := "stockfish"
	if runtime.GOOS == "windows" {
		name = "stockfish.exe"
	}
	return Locator{Dir: ".", Name: name, LookPath: exec.LookPath, Fallback: FallbackPath}
}

// Locate returns override if it names an existing file, otherwise the
// first hit of the default search.
func Locate(override string) (string, error) {
	return DefaultLocator().Locate(override)
}

// Locate resolves the engine path. An explicit override that does not
// exist is an error rather than a reason to keep searching.
func (l Locator) Locate(override string) (string, error) {
	if override != "" {
		if isFile(override) {
			return override, nil
		}
		return "", errors.Wrapf(errors.ErrEngineUnavailable, "engine %q not found", override)
	}
	if l.Name != "" {
		local := filepath.Join(l.Dir, l.Name)
		if isFile(local) {
			// exec resolves bare names against PATH, never the working directory.
			if abs, err := filepath.Abs(local); err == nil {
				return abs, nil
			}
			return local, nil
		}
		if l.LookPath != nil {
			if p, err := l.LookPath(l.Name); err == nil {
				return p, nil
			}
		}
	}
	if l.Fallback != "" && isFile(l.Fallback) {
		return l.Fallback, nil
	}
	return "", errors.Wrap(errors.ErrEngineUnavailable, "stockfish not found")
}

func isFile(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && !fi.IsDir()
}
