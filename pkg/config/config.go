// Package config loads env-tagged configuration structs from the process
// environment, with an optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrParsingConfig wraps env parsing failures.
	ErrParsingConfig = errors.New("failed to parse environment into config")

	// ErrNilPointer is returned when Load receives a nil target.
	ErrNilPointer = errors.New("nil pointer provided to config loader")
)

var loadDotEnv sync.Once

// Load populates v from environment variables. The .env file, if present,
// is loaded once per process before the first parse; a missing file is not
// an error.
func Load[T any](v *T) error {
	loadDotEnv.Do(func() {
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics on failure. Used at startup for
// configuration the process cannot run without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}
