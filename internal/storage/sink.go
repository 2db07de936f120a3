package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PhotoSink writes finished captures beneath a single directory. It only
// ever hands back paths inside that directory.
type PhotoSink struct {
	dir string
}

func NewPhotoSink(dir string) (*PhotoSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("photo sink: directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("photo sink: %w", err)
	}
	return &PhotoSink{dir: dir}, nil
}

// Save implements capture.PhotoSaver.
func (s *PhotoSink) Save(id string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("photo sink: empty payload")
	}
	path := filepath.Join(s.dir, id+".jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("photo sink: %w", err)
	}
	return path, nil
}

// Open reads a previously saved photo, refusing paths that escape the
// sink directory.
func (s *PhotoSink) Open(path string) ([]byte, error) {
	clean := filepath.Clean(path)
	root := filepath.Clean(s.dir) + string(filepath.Separator)
	if !strings.HasPrefix(clean, root) {
		return nil, fmt.Errorf("photo sink: path outside sink directory")
	}
	return os.ReadFile(clean)
}
