package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Magic bytes per image extension so fixtures look like the format their
// name claims. Scanner tests rely on extension-based detection, but real
// headers keep the fixtures honest if that ever tightens.
var imageHeaders = map[string][]byte{
	".jpg":  {0xFF, 0xD8, 0xFF, 0xE0},
	".jpeg": {0xFF, 0xD8, 0xFF, 0xE0},
	".png":  {0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A},
	".gif":  []byte("GIF89a"),
	".webp": []byte("RIFF\x00\x00\x00\x00WEBP"),
}

// WriteFixture creates path with content matching its extension: recognized
// image extensions get that format's magic bytes, anything else a short text
// body. Parent directories are created as needed.
func WriteFixture(t testing.TB, path string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	content, isImage := imageHeaders[strings.ToLower(filepath.Ext(path))]
	if !isImage {
		content = []byte("not an image\n")
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
