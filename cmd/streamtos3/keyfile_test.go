package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempKeyfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "creds.key")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadKeyfile(t *testing.T) {
	tests := []struct {
		name       string
		content    string
		wantID     string
		wantSecret string
		wantErr    string
	}{
		{
			name:       "plain",
			content:    "AKIAEXAMPLE:sup3rs3cret",
			wantID:     "AKIAEXAMPLE",
			wantSecret: "sup3rs3cret",
		},
		{
			name:       "surrounding whitespace",
			content:    "  AKIAEXAMPLE : sup3rs3cret \n",
			wantID:     "AKIAEXAMPLE",
			wantSecret: "sup3rs3cret",
		},
		{
			name:       "comments and blank lines skipped",
			content:    "# backup credentials\n\nAKIAEXAMPLE:sup3rs3cret\n",
			wantID:     "AKIAEXAMPLE",
			wantSecret: "sup3rs3cret",
		},
		{
			name:    "missing separator",
			content: "AKIAEXAMPLE sup3rs3cret",
			wantErr: "malformed",
		},
		{
			name:    "empty secret",
			content: "AKIAEXAMPLE:",
			wantErr: "malformed",
		},
		{
			name:    "empty file",
			content: "\n\n",
			wantErr: "empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempKeyfile(t, tt.content)
			id, secret, err := readKeyfile(path)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantSecret, secret)
		})
	}
}

func TestReadKeyfileUnreadable(t *testing.T) {
	_, _, err := readKeyfile(filepath.Join(t.TempDir(), "does-not-exist.key"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not readable")
}
