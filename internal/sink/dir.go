package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var ErrExists = errors.New("sink_file_exists")

// DirSink writes files into a local directory. Content lands in a hidden temp
// file first and is renamed into place only after a clean EOF.
type DirSink struct {
	Dir       string
	Overwrite bool
}

func (d *DirSink) Write(ctx context.Context, name string, r io.Reader) (string, error) {
	clean, err := cleanName(name)
	if err != nil {
		return "", err
	}
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(dir, clean)
	if !d.Overwrite {
		if _, err := os.Stat(dest); err == nil {
			return "", fmt.Errorf("%w: %s", ErrExists, dest)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+clean+".megafetch-")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	keepTemp := false
	defer func() {
		if !keepTemp {
			_ = os.Remove(tmpPath)
		}
	}()

	buf := make([]byte, 1024*1024)
	for {
		if err := ctx.Err(); err != nil {
			_ = tmp.Close()
			return "", err
		}
		n, readErr := r.Read(buf)
		if n > 0 {
			if _, err := tmp.Write(buf[:n]); err != nil {
				_ = tmp.Close()
				return "", err
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			_ = tmp.Close()
			return "", readErr
		}
	}

	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if d.Overwrite {
		if err := os.Rename(tmpPath, dest); err != nil {
			return "", err
		}
		keepTemp = true
		return dest, nil
	}
	// Link fails if dest appeared while the body was downloading; the deferred
	// remove drops the temp name either way.
	if err := os.Link(tmpPath, dest); err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("%w: %s", ErrExists, dest)
		}
		return "", err
	}
	return dest, nil
}
