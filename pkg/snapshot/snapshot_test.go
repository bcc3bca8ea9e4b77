package snapshot

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveWritesDecodedImage(t *testing.T) {
	root := t.TempDir()
	s := NewStore(root, "/snap/")

	img := []byte{0xff, 0xd8, 0xff, 0xe0}
	payload := base64.StdEncoding.EncodeToString(img)

	url, err := s.Save("CAM001", "2", "jpg", "2026-08-24 10:30:00", payload)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	want := "/snap/CAM001/CAM001_2_20260824103000.jpg"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}

	data, err := os.ReadFile(filepath.Join(root, "CAM001", "CAM001_2_20260824103000.jpg"))
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != string(img) {
		t.Errorf("stored image = %x, want %x", data, img)
	}
}

func TestSaveDefaults(t *testing.T) {
	s := NewStore(t.TempDir(), "/snap/")
	s.now = func() time.Time {
		return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	}
	payload := base64.StdEncoding.EncodeToString([]byte("img"))

	// Empty channel, type, and time all fall back.
	url, err := s.Save("CAM002", "", "", "", payload)
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	want := "/snap/CAM002/CAM002_0_20260824120000.jpg"
	if url != want {
		t.Errorf("url = %q, want %q", url, want)
	}
}

func TestSaveRejectsBadInput(t *testing.T) {
	s := NewStore(t.TempDir(), "/snap/")

	if _, err := s.Save("", "1", "jpg", "", "aGk="); err == nil {
		t.Error("Save() with empty serial: error = nil")
	}
	if _, err := s.Save("CAM001", "1", "jpg", "", ""); err == nil {
		t.Error("Save() with empty payload: error = nil")
	}
	if _, err := s.Save("CAM001", "1", "jpg", "", "not!!base64"); err == nil {
		t.Error("Save() with invalid base64: error = nil")
	}
}

func TestLatest(t *testing.T) {
	s := NewStore(t.TempDir(), "/snap/")
	payload := base64.StdEncoding.EncodeToString([]byte("img"))

	if got := s.Latest("CAM003"); got != "" {
		t.Errorf("Latest() on empty store = %q, want \"\"", got)
	}

	if _, err := s.Save("CAM003", "1", "jpg", "2026-08-24 10:00:00", payload); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Save("CAM003", "1", "jpg", "2026-08-24 11:00:00", payload); err != nil {
		t.Fatal(err)
	}

	want := "/snap/CAM003/CAM003_1_20260824110000.jpg"
	if got := s.Latest("CAM003"); got != want {
		t.Errorf("Latest() = %q, want %q", got, want)
	}
}

func TestNormalizeTime(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2026-08-24 10:30:00", "20260824103000"},
		{"20260824103000", "20260824103000"},
		{"", ""},
		{"2026-08-24", ""},
		{"garbage", ""},
	}
	for _, c := range cases {
		if got := normalizeTime(c.in); got != c.want {
			t.Errorf("normalizeTime(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
