package util

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPromptSecret_NotATerminal(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	var out bytes.Buffer
	_, err = promptSecret(f, &out, "FIX password")
	if err == nil {
		t.Fatal("expected error for non-terminal input")
	}
	if !strings.Contains(err.Error(), "FIX password") {
		t.Errorf("error should name the secret: %v", err)
	}
	if out.Len() != 0 {
		t.Errorf("nothing should be printed, got %q", out.String())
	}
}
