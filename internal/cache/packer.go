package cache

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Packer turns a job's cached paths into an opaque blob and back. The
// engine core never interprets path contents; this is the boundary where
// "a set of paths" becomes "a blob handle".
type Packer interface {
	Pack(baseDir string, paths []string) ([]byte, error)
	Unpack(blob []byte, baseDir string) error
}

// TarPacker is the default Packer: a gzipped tar of the given paths,
// stored relative to the working directory.
type TarPacker struct{}

// Pack archives each path (file or directory) under baseDir. Paths that do
// not exist yet are skipped, so a first run with nothing to cache still
// stores a valid (empty) entry.
func (TarPacker) Pack(baseDir string, paths []string) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, path := range paths {
		root := filepath.Join(baseDir, path)
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			rel, err := filepath.Rel(baseDir, p)
			if err != nil {
				return err
			}
			return addFile(tw, p, filepath.ToSlash(rel))
		})
		if err != nil {
			return nil, fmt.Errorf("packing %s: %w", path, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addFile(tw *tar.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	hdr.Name = name
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(tw, f)
	return err
}

// Unpack restores a blob produced by Pack into baseDir.
func (TarPacker) Unpack(blob []byte, baseDir string) error {
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return fmt.Errorf("reading cache blob: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading cache blob: %w", err)
		}

		// Reject entries that would escape the working directory.
		name := filepath.FromSlash(hdr.Name)
		if filepath.IsAbs(name) || strings.Contains(name, "..") {
			return fmt.Errorf("cache blob contains unsafe path %q", hdr.Name)
		}
		target := filepath.Join(baseDir, name)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
		if err != nil {
			return err
		}
		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
}
