package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WriteDefaults writes appsettings.yaml and efrev.yaml with default settings
// into dir. Existing files are left alone and reported as an error.
func WriteDefaults(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	defaults := Defaults()
	defaults.Provider = "sqlserver"

	settingsDoc, err := encodeYAML(map[string]Settings{settingsSection: defaults})
	if err != nil {
		return nil, err
	}
	configDoc, err := encodeYAML(defaults)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, f := range []struct {
		name string
		data []byte
	}{
		{DefaultSettingsFile, settingsDoc},
		{DefaultConfigFile, configDoc},
	} {
		path := filepath.Join(dir, f.name)
		if err := writeNew(path, f.data); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func encodeYAML(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode settings: %w", err)
	}
	return buf.Bytes(), nil
}

func writeNew(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%s already exists; remove it or edit it in place", path)
		}
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
