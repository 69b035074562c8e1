package config

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultKeyFile is $HOME/.cloudflare.
func DefaultKeyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return filepath.Join(home, ".cloudflare")
}

// PermissionError is returned by VerifyPermissions for a key file that others can read or write.
type PermissionError struct {
	Path string
	Mode fs.FileMode
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("key file %s has mode %s; run chmod 600 on it", e.Path, e.Mode)
}

// ReadKey returns the token stored on the first line of the file at path.
func ReadKey(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening key file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", fmt.Errorf("reading key file %s: %w", path, err)
		}
		return "", fmt.Errorf("key file %s is empty", path)
	}
	key := strings.TrimSpace(sc.Text())
	if key == "" {
		return "", fmt.Errorf("key file %s is empty", path)
	}
	return key, nil
}

// WriteKey stores key in a new file at path with mode 0600.
// An existing file is never replaced; the error then matches fs.ErrExist.
func WriteKey(path, key string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("creating key file: %w", err)
	}
	if _, err := fmt.Fprintln(f, key); err != nil {
		f.Close()
		return fmt.Errorf("writing key file %s: %w", path, err)
	}
	return f.Close()
}

// VerifyPermissions accepts only owner-private key files: mode 0600, or 0400 for read-only secret mounts.
func VerifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("checking key file: %w", err)
	}
	switch mode := info.Mode().Perm(); mode {
	case 0600, 0400:
		return nil
	default:
		return &PermissionError{Path: path, Mode: mode}
	}
}
