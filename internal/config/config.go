// Package config loads CLI defaults from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Workers int           // TPOOL_WORKERS, pool size
	Queue   int           // TPOOL_QUEUE, max queued tasks
	Tasks   int           // TPOOL_TASKS, tasks pushed per run
	Sleep   time.Duration // TPOOL_SLEEP, how long each demo task sleeps
	Rate    float64       // TPOOL_RATE, tasks per second; 0 disables throttling
}

// Default returns the values used when nothing is set.
func Default() Config {
	return Config{
		Workers: 4,
		Queue:   1024,
		Tasks:   16,
		Sleep:   50 * time.Millisecond,
	}
}

// Load reads files (".env" when none are given) into the process environment,
// skipping any that do not exist, then builds a Config from TPOOL_* variables.
// Variables already set in the environment win over the files.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", f, err)
		}
	}

	def := Default()
	var (
		cfg Config
		err error
	)
	if cfg.Workers, err = getenvInt("TPOOL_WORKERS", def.Workers); err != nil {
		return Config{}, err
	}
	if cfg.Queue, err = getenvInt("TPOOL_QUEUE", def.Queue); err != nil {
		return Config{}, err
	}
	if cfg.Tasks, err = getenvInt("TPOOL_TASKS", def.Tasks); err != nil {
		return Config{}, err
	}
	if cfg.Sleep, err = getenvDuration("TPOOL_SLEEP", def.Sleep); err != nil {
		return Config{}, err
	}
	if cfg.Rate, err = getenvFloat("TPOOL_RATE", def.Rate); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getenvInt(k string, fallback int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a valid integer: %w", k, v, err)
	}
	return n, nil
}

func getenvFloat(k string, fallback float64) (float64, error) {
	v := os.Getenv(k)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a valid number: %w", k, v, err)
	}
	return f, nil
}

func getenvDuration(k string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s=%q is not a valid duration: %w", k, v, err)
	}
	return d, nil
}
