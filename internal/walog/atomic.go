package walog

import (
	"encoding/json"
	"os"
)

// WriteAtomic marshals v as JSON to a temp file sibling of path and then
// renames it into place. Rename is atomic at the filesystem level, so a
// reader never observes a partially-written file: either the old path
// contents or the fully-written new contents, never a mix.
//
// Both the mapping snapshot (internal/kv) and the index snapshot
// (internal/index) share this helper — they are the two places in the
// engine that need "write to temp, then atomic rename" semantics.
func WriteAtomic(path string, v any) error {
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadIfExists decodes path's JSON contents into v. A missing file is not
// an error — callers treat "nothing to load yet" as a no-op. A file that
// exists but fails to parse is reported via the returned error so callers
// can decide whether to log-and-ignore or fail startup.
func ReadIfExists(path string, v any) (found bool, err error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(v); err != nil {
		return true, err
	}
	return true, nil
}
