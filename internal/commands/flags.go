package commands

import (
	"fmt"
	"io"
	"os"
)

type Flags struct {
	LogLevel   string
	BackendURL string
}

// readInput reads path, or r when path is empty or "-".
func readInput(r io.Reader, path string) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}
