package env

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Get returns the trimmed value of key, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// DotenvFiles lists the dotenv files consulted for appEnv, most specific
// first. godotenv never overrides a variable that is already set, so the
// first file to define a key wins and real environment variables beat all
// of them.
func DotenvFiles(appEnv string) []string {
	files := []string{".env.local", ".env"}
	if appEnv = strings.ToLower(strings.TrimSpace(appEnv)); appEnv != "" {
		files = append([]string{".env." + appEnv + ".local", ".env." + appEnv}, files...)
	}
	return files
}

// LoadDotenv loads every existing file from DotenvFiles and returns the ones
// that were read. Missing files are skipped. A file that exists but cannot
// be parsed is an error.
func LoadDotenv(appEnv string) ([]string, error) {
	var loaded []string
	for _, path := range DotenvFiles(appEnv) {
		err := godotenv.Load(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return loaded, err
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}
