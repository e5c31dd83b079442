package gallery

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested file does not exist.
var ErrNotFound = errors.New("file not found")

// ErrInvalidName is returned for names that do not denote a plain file.
var ErrInvalidName = errors.New("invalid file name")

// File describes a stored image.
type File struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Store keeps uploaded files in a directory tree. Gallery directories such
// as "/image/" map to subdirectories of root.
type Store struct {
	root string
}

// NewStore creates the root directory if needed.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("gallery root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create gallery root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Save writes src as dir/name, replacing any existing file of that name.
func (s *Store) Save(dir, name string, src io.Reader) (File, error) {
	name, err := cleanName(name)
	if err != nil {
		return File{}, err
	}

	target := s.dirPath(dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return File{}, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(target, ".upload-*")
	if err != nil {
		return File{}, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return File{}, fmt.Errorf("failed to write file: %w", err)
	}

	dst := filepath.Join(target, name)
	if err := os.Rename(tmpName, dst); err != nil {
		return File{}, fmt.Errorf("failed to store file: %w", err)
	}

	return File{
		Name:    name,
		Path:    galleryPath(dir, name),
		Size:    n,
		ModTime: time.Now(),
	}, nil
}

// List returns the files in dir sorted by name. A missing directory is empty.
func (s *Store) List(dir string) ([]File, error) {
	entries, err := os.ReadDir(s.dirPath(dir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []File{}, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	files := make([]File, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, File{
			Name:    e.Name(),
			Path:    galleryPath(dir, e.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Open returns a reader for dir/name.
func (s *Store) Open(dir, name string) (io.ReadCloser, error) {
	name, err := cleanName(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.dirPath(dir), name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return f, nil
}

// Delete removes the file at a gallery path such as "/image/a.jpg".
func (s *Store) Delete(file string) error {
	dir, name := path.Split(path.Clean("/" + file))
	name, err := cleanName(name)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(s.dirPath(dir), name)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// dirPath maps a gallery directory onto the filesystem, never leaving root.
func (s *Store) dirPath(dir string) string {
	clean := path.Clean("/" + dir)
	return filepath.Join(s.root, filepath.FromSlash(strings.TrimPrefix(clean, "/")))
}

func galleryPath(dir, name string) string {
	return path.Join("/", dir, name)
}

func cleanName(name string) (string, error) {
	base := path.Base(strings.ReplaceAll(name, "\\", "/"))
	if base == "" || base == "." || base == "/" || base == ".." || strings.HasPrefix(base, ".") {
		return "", ErrInvalidName
	}
	return base, nil
}
