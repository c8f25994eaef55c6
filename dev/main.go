// main.go creates a local development environment under dev/.state: a migrated sqlite store
// and a config file pointing every crawl artifact into the state directory.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"txschools-scraper/internal/crawl"
	"txschools-scraper/internal/output/store"
	configlibsql "txschools-scraper/lib/configutil/libsql"
)

const stateDir = "dev/.state"

func createStore(ctx context.Context, path string) error {
	_, err := os.Stat(path)
	if err == nil {
		fmt.Println("store already created at", path)
		return nil
	}

	fmt.Println("creating store at", path)
	db, err := configlibsql.Struct{File: path}.OpenDB()
	if err != nil {
		return err
	}
	defer db.Close()
	return store.Migrate(ctx, db)
}

func writeConfig(path string) error {
	_, err := os.Stat(path)
	if err == nil {
		fmt.Println("config already written at", path)
		return nil
	}

	config := crawl.Defaults()
	config.MaxPages = 2
	config.BatchSize = 5
	config.OutputDir = filepath.Join(stateDir, "output")
	config.ProgressDir = filepath.Join(stateDir, "progress")
	config.LogFile = filepath.Join(stateDir, "scraper.log")
	config.Http.DumpDir = filepath.Join(stateDir, "http")
	config.Store = configlibsql.Struct{File: filepath.Join(stateDir, "store.db")}

	// json is valid json5
	buff, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println("writing config to", path)
	return os.WriteFile(path, buff, 0644)
}

func create(ctx context.Context, recreate bool) error {
	_, err := os.Stat("go.mod")
	if os.IsNotExist(err) {
		return fmt.Errorf("the dev environment must be created in the repository root (the same directory as the 'go.mod' file)")
	}

	if recreate {
		err = os.RemoveAll(stateDir)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	err = os.MkdirAll(stateDir, 0777)
	if err != nil {
		return err
	}

	err = createStore(ctx, filepath.Join(stateDir, "store.db"))
	if err != nil {
		return err
	}
	return writeConfig(filepath.Join(stateDir, "config.json5"))
}

func main() {
	recreate := flag.Bool("recreate", false, "recreate the dev environment from scratch")
	flag.Parse()

	err := create(context.Background(), *recreate)
	if err != nil {
		slog.Error("failed to create dev environment", "err", err.Error())
		os.Exit(1)
	}

	slog.Info("dev environment created, run a crawl with `go run ./cmd/txschools crawl --config dev/.state/config.json5`")
}
