package configutil

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	URL     string   `json:"url"`
	Workers int      `json:"workers"`
	Filters []string `json:"filters"`
	Nested  struct {
		Headless bool `json:"headless"`
	} `json:"nested"`
}

func write(t *testing.T, path, content string) {
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLayers(t *testing.T) {
	require.Equal(t, []string{"config.json5", "config.local.json5"}, Layers("config.json5"))
	require.Equal(t, []string{"dir/conf", "dir/conf.local"}, Layers("dir/conf"))
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")

	write(t, name, `{
		// comments and trailing commas are allowed
		url: "https://txschools.example",
		workers: 4,
		filters: ["Kindergarten"],
	}`)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "https://txschools.example", cfg.URL)
	require.Equal(t, 4, cfg.Workers)

	write(t, filepath.Join(dir, "config.local.json5"), `{ workers: 8, nested: { headless: true } }`)

	cfg, err = ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "https://txschools.example", cfg.URL)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, []string{"Kindergarten"}, cfg.Filters)
	require.True(t, cfg.Nested.Headless)
}

func TestReadConfigLocalOnly(t *testing.T) {
	dir := t.TempDir()
	write(t, filepath.Join(dir, "config.local.json5"), `{ workers: 2 }`)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Workers)
}

func TestReadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")

	_, err := ReadConfig[testConfig](name)
	require.True(t, errors.Is(err, fs.ErrNotExist))

	write(t, name, `{ workers: "many" `)
	_, err = ReadConfig[testConfig](name)
	require.Error(t, err)
	require.False(t, errors.Is(err, fs.ErrNotExist))
}

func TestReadConfigEmptyList(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")
	write(t, name, `{ filters: [] }`)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.NotNil(t, cfg.Filters)
	require.Empty(t, cfg.Filters)
}
