// Package fileutil provides small filesystem helpers shared by the pipeline
// and maintenance sweep.
package fileutil

import (
	"fmt"
	"io"
	"os"
)

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// MoveFile renames src to dst, falling back to copy-and-remove when rename
// fails (for example across filesystems). src is always removed on success.
func MoveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := CopyFile(src, dst); err != nil {
		return fmt.Errorf("move %q to %q: %w", src, dst, err)
	}
	return os.Remove(src)
}

// DirSize computes the total size in bytes of all regular files under root
// using an explicit work stack instead of recursion.
func DirSize(root string) (int64, error) {
	var total int64
	stack := []string{root}
	for len(stack) > 0 {
		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(dir)
		if err != nil {
			return total, err
		}
		for _, entry := range entries {
			path := dir + string(os.PathSeparator) + entry.Name()
			if entry.IsDir() {
				stack = append(stack, path)
				continue
			}
			info, err := entry.Info()
			if err != nil {
				continue
			}
			if info.Mode().IsRegular() {
				total += info.Size()
			}
		}
	}
	return total, nil
}

// IsDirEmpty reports whether a directory contains no entries.
func IsDirEmpty(dir string) (bool, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false, err
	}
	return len(entries) == 0, nil
}
