// Package bundle stores a file set as a zstd-compressed tar archive.
package bundle

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/odvcencio/treesync/pkg/object"
	"github.com/odvcencio/treesync/pkg/workspace"
)

// paxBlobKey records each entry's blob id so Read can verify content.
const paxBlobKey = "TREESYNC.blob"

var epoch = time.Unix(0, 0).UTC()

// Write archives files to w in the given order.
func Write(w io.Writer, files []object.FileEntry) error {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(enc)
	for _, f := range files {
		name, err := workspace.CleanPath(f.Path)
		if err != nil {
			enc.Close()
			return err
		}
		hdr := &tar.Header{
			Typeflag:   tar.TypeReg,
			Name:       name,
			Mode:       0o644,
			Size:       int64(len(f.Content)),
			ModTime:    epoch,
			Format:     tar.FormatPAX,
			PAXRecords: map[string]string{paxBlobKey: object.HashBlob(f.Content).String()},
		}
		if err := tw.WriteHeader(hdr); err != nil {
			enc.Close()
			return fmt.Errorf("bundle %s: %w", name, err)
		}
		if _, err := tw.Write(f.Content); err != nil {
			enc.Close()
			return fmt.Errorf("bundle %s: %w", name, err)
		}
	}
	if err := tw.Close(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Read extracts the file set archived by Write. Entries whose content does
// not match their recorded blob id are rejected.
func Read(r io.Reader) ([]object.FileEntry, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []object.FileEntry
	tr := tar.NewReader(dec)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read bundle: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		name, err := workspace.CleanPath(hdr.Name)
		if err != nil {
			return nil, fmt.Errorf("read bundle: %w", err)
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read bundle %s: %w", name, err)
		}
		if want, ok := hdr.PAXRecords[paxBlobKey]; ok {
			if got := object.HashBlob(content); got.String() != want {
				return nil, fmt.Errorf("read bundle %s: content hash %s does not match recorded %s", name, got, want)
			}
		}
		out = append(out, object.FileEntry{Path: name, Content: content})
	}
}

// WriteFile archives files to path.
func WriteFile(path string, files []object.FileEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, files); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile extracts the bundle at path.
func ReadFile(path string) ([]object.FileEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}
