package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// illegalFilenameChars are stripped from suggested download filenames before
// anything touches the filesystem.
var illegalFilenameChars = regexp.MustCompile(`[\\/*?:"<>|]`)

func sanitizeFilename(name string) string {
	name = illegalFilenameChars.ReplaceAllString(name, "_")
	return strings.TrimSpace(name)
}

// uniquePath returns dir/name, appending _1, _2, ... before the extension
// until the path does not exist. An existing file is never overwritten.
func uniquePath(dir, name string) string {
	path := filepath.Join(dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return path
	}
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	for counter := 1; ; counter++ {
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, counter, ext))
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
	}
}

// saveDownload moves a completed browser download from its staging location
// into the archive directory under a sanitized, prefixed, collision-free
// name, and returns the final path.
func saveDownload(stagedPath, dir, prefix, suggestedName string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create target directory: %w", err)
	}

	name := sanitizeFilename(suggestedName)
	if name == "" {
		name = prefix + time.Now().Format("20060102_150405") + ".pdf"
	} else if !strings.HasPrefix(name, prefix) {
		name = prefix + name
	}

	dst := uniquePath(dir, name)
	if err := moveFile(stagedPath, dst); err != nil {
		return "", fmt.Errorf("failed to store download: %w", err)
	}
	return dst, nil
}

// moveFile renames when possible and falls back to copy+remove when the
// staging dir sits on another filesystem.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}
