package catalog

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// stateFile persists the ids of installed extensions.
type stateFile struct {
	path string
}

type state struct {
	Installed []string `yaml:"installed"`
}

// load returns the saved ids. The second return value is false when the
// file does not exist yet.
func (f *stateFile) load() ([]string, bool, error) {
	in, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var st state
	if err := yaml.Unmarshal(in, &st); err != nil {
		return nil, false, err
	}

	return st.Installed, true, nil
}

// save replaces the file contents. The file is written next to its
// destination and renamed so readers never see a partial file.
func (f *stateFile) save(ids []string) error {
	out, err := yaml.Marshal(state{Installed: ids})
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".state-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), f.path)
}
