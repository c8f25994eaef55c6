package configutil

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// Layers returns the files ReadConfig considers for name, lowest priority first:
//  1. <name>.<ext>
//  2. <name>.local.<ext>
func Layers(name string) []string {
	ext := filepath.Ext(name)
	local := strings.TrimSuffix(name, ext) + ".local" + ext
	return []string{name, local}
}

func readLayer[T any](path string) (out T, found bool, err error) {
	buff, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return out, false, nil
	}
	if err != nil {
		return out, false, err
	}
	if len(strings.TrimSpace(string(buff))) == 0 {
		return out, true, nil
	}
	err = json5.Unmarshal(buff, &out)
	if err != nil {
		return out, true, fmt.Errorf("%s: %w", path, err)
	}
	return out, true, nil
}

// ReadConfig decodes every layer of name that exists as json5, later layers override the
// non-zero fields of earlier ones. It returns an error wrapping fs.ErrNotExist when no layer
// exists.
func ReadConfig[T any](name string) (T, error) {
	var out T
	found := false

	for _, path := range Layers(name) {
		layer, ok, err := readLayer[T](path)
		if err != nil {
			return out, err
		}
		if !ok {
			continue
		}

		if !found {
			out = layer
			found = true
			continue
		}
		err = mergo.Merge(&out, layer, mergo.WithOverride)
		if err != nil {
			return out, fmt.Errorf("merge %s: %w", path, err)
		}
		slog.Debug("merged config overrides", "file", path)
	}

	if !found {
		return out, fmt.Errorf("read config %s: %w", name, fs.ErrNotExist)
	}
	return out, nil
}
