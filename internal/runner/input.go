package runner

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// ResolveInput determines the query text from the available sources.
// Priority: arg > filePath > stdinReader.
// stdinReader may be nil if stdin is a TTY (no pipe).
func ResolveInput(arg, filePath string, stdinReader io.Reader) (string, error) {
	if text := strings.TrimSpace(arg); text != "" {
		return text, nil
	}

	if filePath != "" {
		data, err := os.ReadFile(filePath)
		if err != nil {
			return "", fmt.Errorf("reading query file: %w", err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return "", fmt.Errorf("query file is empty: %s", filePath)
		}
		return text, nil
	}

	if stdinReader != nil {
		data, err := io.ReadAll(stdinReader)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		if text := strings.TrimSpace(string(data)); text != "" {
			return text, nil
		}
	}

	return "", fmt.Errorf("no input provided: pass the query as an argument, use --file, or pipe to stdin")
}

// PipedStdin returns os.Stdin when it is a pipe or file, nil for a terminal.
func PipedStdin() io.Reader {
	if stat, err := os.Stdin.Stat(); err == nil && stat.Mode()&os.ModeCharDevice == 0 {
		return os.Stdin
	}
	return nil
}
