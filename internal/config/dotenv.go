package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const dotenvFilename = ".env"

// loadDotEnv returns the path of the file it loaded, or "" when no .env file
// exists between the working directory and the filesystem root.
func loadDotEnv() (string, error) {
	path, err := findDotEnv(dotenvFilename)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}

	if err := godotenv.Load(path); err != nil {
		return "", err
	}

	return path, nil
}

func findDotEnv(filename string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, filename)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", os.ErrNotExist
}
