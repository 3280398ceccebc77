package snapshot

import (
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"
)

const fileName = "snapshot.bin"

// Path is where Writer puts the snapshot inside dir.
func Path(dir string) string {
	return filepath.Join(dir, fileName)
}

type Writer struct {
	Dir string
}

// Write replaces the snapshot in Dir. A crash mid-write leaves the
// previous snapshot in place.
func (w *Writer) Write(s *Snapshot) error {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(w.Dir, fileName+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(s); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), Path(w.Dir))
}

// Load reads the snapshot in dir. A missing snapshot is not an error;
// the zero Snapshot is returned.
func Load(dir string) (*Snapshot, error) {
	f, err := os.Open(Path(dir))
	if errors.Is(err, os.ErrNotExist) {
		return &Snapshot{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var s Snapshot
	if err := gob.NewDecoder(f).Decode(&s); err != nil {
		return nil, err
	}
	return &s, nil
}
