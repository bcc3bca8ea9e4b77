// Package snapshot persists device-posted preview images to disk and
// maps them to the URLs the web layer serves them from.
package snapshot

import (
	"encoding/base64"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// Store writes snapshots under LocalRoot and reports their addresses
// under WebRoot.
type Store struct {
	localRoot string
	webRoot   string
	now       func() time.Time
}

// NewStore creates a snapshot store rooted at localRoot, serving
// files under webRoot.
func NewStore(localRoot, webRoot string) *Store {
	return &Store{
		localRoot: localRoot,
		webRoot:   webRoot,
		now:       time.Now,
	}
}

// Save decodes the base64 image payload and writes it as
// <serial>_<channel>_<timestamp>.<type> under the device's snapshot
// directory. It returns the web path of the stored file.
//
// pictureTime accepts "2006-01-02 15:04:05" style strings; separators
// are stripped so the filename timestamp is always 14 digits. An
// empty or malformed time falls back to the current time.
func (s *Store) Save(serial, channel, imgType, pictureTime, payload string) (string, error) {
	if serial == "" || payload == "" {
		return "", fmt.Errorf("snapshot: missing serial or image payload")
	}
	if channel == "" {
		channel = "0"
	}
	if imgType == "" {
		imgType = "jpg"
	}

	img, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", fmt.Errorf("snapshot: failed to decode image payload: %w", err)
	}

	stamp := normalizeTime(pictureTime)
	if stamp == "" {
		stamp = s.now().Format("20060102150405")
	}

	dir := filepath.Join(s.localRoot, serial)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("snapshot: failed to create device directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s_%s.%s", serial, channel, stamp, imgType)
	if err := os.WriteFile(filepath.Join(dir, name), img, 0o644); err != nil {
		return "", fmt.Errorf("snapshot: failed to write image: %w", err)
	}

	return path.Join("/", strings.Trim(s.webRoot, "/"), serial, name), nil
}

// Latest returns the web path of the most recently written snapshot
// for serial, or "" when none exists.
func (s *Store) Latest(serial string) string {
	entries, err := os.ReadDir(filepath.Join(s.localRoot, serial))
	if err != nil || len(entries) == 0 {
		return ""
	}
	// Filenames embed the capture timestamp, so lexical order is
	// chronological order.
	latest := ""
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if e.Name() > latest {
			latest = e.Name()
		}
	}
	if latest == "" {
		return ""
	}
	return path.Join("/", strings.Trim(s.webRoot, "/"), serial, latest)
}

// normalizeTime strips date separators, returning a 14-digit stamp or
// "" when the input does not reduce to one.
func normalizeTime(t string) string {
	var b strings.Builder
	for _, r := range t {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() != 14 {
		return ""
	}
	return b.String()
}
