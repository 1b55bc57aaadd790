package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "examd.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRootRegistersCommands(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"serve", "migrate", "export"} {
		if c, _, err := cmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Fatalf("command %s not registered", name)
		}
	}
}

func TestExportRequiresExam(t *testing.T) {
	_, err := runCLI(t, "export", "--format", "csv")
	if err == nil || !strings.Contains(err.Error(), "--exam") {
		t.Fatalf("expected missing exam error, got %v", err)
	}
}

func TestExportRejectsUnknownLayout(t *testing.T) {
	_, err := runCLI(t, "export", "--exam", "1", "--layout", "grid")
	if err == nil || !strings.Contains(err.Error(), "unknown layout") {
		t.Fatalf("expected layout error, got %v", err)
	}
}

func TestExportMissingExamOnMemoryStore(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("REDIS_ADDR", "")
	cfg := writeConfig(t, "storage_driver: memory\n")
	_, err := runCLI(t, "--config", cfg, "export", "--exam", "42", "-o", "-")
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected exam not found, got %v", err)
	}
}
