package main

import (
	"fmt"
	"os"
	"strings"
)

// readKeyfile reads a credential file holding one line of the form
//
//	<access_key_id>:<secret_access_key>
//
// Surrounding whitespace and blank lines are ignored. The file must not be
// world-readable in spirit, but that is left to the operator; the parser only
// cares about the format.
func readKeyfile(path string) (accessKeyID, secretAccessKey string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("keyfile %s is not readable: %w", path, err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		id, secret, found := strings.Cut(line, ":")
		id = strings.TrimSpace(id)
		secret = strings.TrimSpace(secret)
		if !found || id == "" || secret == "" {
			return "", "", fmt.Errorf("keyfile %s is malformed: expected <access_key_id>:<secret_access_key>", path)
		}
		return id, secret, nil
	}

	return "", "", fmt.Errorf("keyfile %s is empty", path)
}
