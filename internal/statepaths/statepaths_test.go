package statepaths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func TestResolveStateDirConfigured(t *testing.T) {
	dir := t.TempDir()
	if got := resolveStateDir(dir); got != dir {
		t.Fatalf("resolveStateDir(%q) = %q", dir, got)
	}
}

func TestResolveStateDirDefault(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	want := filepath.Join(home, defaultStateDirName)
	if got := resolveStateDir(""); got != want {
		t.Fatalf("resolveStateDir(\"\") = %q, want %q", got, want)
	}
}

func TestExpandHomePath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skipf("no home dir: %v", err)
	}
	if got := ExpandHomePath("~/x/y"); got != filepath.Join(home, "x", "y") {
		t.Fatalf("ExpandHomePath(~/x/y) = %q", got)
	}
	if got := ExpandHomePath("~"); got != home {
		t.Fatalf("ExpandHomePath(~) = %q", got)
	}
	if got := ExpandHomePath("/abs/path"); got != "/abs/path" {
		t.Fatalf("ExpandHomePath(/abs/path) = %q", got)
	}
}

func TestLayoutUnderStateDir(t *testing.T) {
	dir := t.TempDir()
	viper.Set("file_state_dir", dir)
	defer viper.Set("file_state_dir", "")

	if got, want := UsersPath(), filepath.Join(dir, UsersFilename); got != want {
		t.Fatalf("UsersPath() = %q, want %q", got, want)
	}
	if got, want := PersonaPath(), filepath.Join(dir, PersonaFilename); got != want {
		t.Fatalf("PersonaPath() = %q, want %q", got, want)
	}
	if got, want := LockDir(), filepath.Join(dir, LockDirName); got != want {
		t.Fatalf("LockDir() = %q, want %q", got, want)
	}
	if got, want := BackupDir(), filepath.Join(dir, "backups"); got != want {
		t.Fatalf("BackupDir() = %q, want %q", got, want)
	}
}
