package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ParseEnv loads configuration from environment variables.
//
// Variables from the given env files, or from .env in the working directory when none are given, are loaded first.
// They never override variables already set. Missing files are ignored.
func ParseEnv(target any, files ...string) error {
	if err := loadEnvFiles(files...); err != nil {
		return err
	}
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

func loadEnvFiles(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load env file (%s): %w", file, err)
		}
	}
	return nil
}
