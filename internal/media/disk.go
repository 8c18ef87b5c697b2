package media

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const maxImageBytes = 10 << 20

var dataURLPattern = regexp.MustCompile(`^data:image/(png|jpg|jpeg);base64,`)

var (
	ErrInvalidImage = errors.New("invalid image payload")
	ErrImageTooBig  = errors.New("image exceeds size limit")
)

// Store persists blog photos and resolves them to public URLs.
type Store interface {
	SaveDataURL(dataURL, owner string) (string, error)
	Remove(publicURL string) error
}

// DiskStore writes decoded images under a local directory that the server
// exposes read-only at /storage/.
type DiskStore struct {
	dir     string
	baseURL string
}

func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &DiskStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *DiskStore) Dir() string { return s.dir }

// SaveDataURL decodes a base64 data URL and writes it as
// <unix-ms>-<owner>.png, returning the public URL of the stored file.
func (s *DiskStore) SaveDataURL(dataURL, owner string) (string, error) {
	match := dataURLPattern.FindString(dataURL)
	if match == "" {
		return "", ErrInvalidImage
	}

	data, err := base64.StdEncoding.DecodeString(dataURL[len(match):])
	if err != nil || len(data) == 0 {
		return "", ErrInvalidImage
	}
	if len(data) > maxImageBytes {
		return "", ErrImageTooBig
	}

	name := fmt.Sprintf("%d-%s.png", time.Now().UnixMilli(), owner)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write image: %w", err)
	}

	return s.baseURL + "/storage/" + name, nil
}

// Remove deletes the file behind a public URL previously returned by
// SaveDataURL. A missing file is not an error.
func (s *DiskStore) Remove(publicURL string) error {
	name := path.Base(publicURL)
	if name == "" || name == "." || name == "/" {
		return nil
	}

	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove image: %w", err)
	}
	return nil
}
