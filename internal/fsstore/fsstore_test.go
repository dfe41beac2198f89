package fsstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestBuildLockPath(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), ".fslocks")
	got, err := BuildLockPath(root, "users.main")
	if err != nil {
		t.Fatalf("BuildLockPath() error = %v", err)
	}
	want := filepath.Join(root, "users.main.lck")
	if got != want {
		t.Fatalf("BuildLockPath() = %q, want %q", got, want)
	}
}

func TestBuildLockPathInvalidKey(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), ".fslocks")
	invalid := []string{
		"",
		"Users.main",
		"users/main",
		".users.main",
		"users.main.",
		"users main",
	}
	for _, key := range invalid {
		key := key
		t.Run(key, func(t *testing.T) {
			t.Parallel()
			_, err := BuildLockPath(root, key)
			if err == nil {
				t.Fatalf("BuildLockPath(%q) expected error", key)
			}
			if !errors.Is(err, ErrInvalidPath) {
				t.Fatalf("BuildLockPath(%q) error = %v, want ErrInvalidPath", key, err)
			}
		})
	}
}

func TestReadWriteJSONAtomic(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "users.json")
	type payload struct {
		Name string `json:"name"`
	}
	in := payload{Name: "alpha"}
	if err := WriteJSONAtomic(path, in, FileOptions{}); err != nil {
		t.Fatalf("WriteJSONAtomic() error = %v", err)
	}
	var out payload
	ok, err := ReadJSON(path, &out)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if !ok {
		t.Fatalf("ReadJSON() exists = false, want true")
	}
	if out.Name != in.Name {
		t.Fatalf("ReadJSON() value = %+v, want %+v", out, in)
	}
}

func TestReadJSONMissingFile(t *testing.T) {
	t.Parallel()

	var out map[string]any
	ok, err := ReadJSON(filepath.Join(t.TempDir(), "absent.json"), &out)
	if err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if ok {
		t.Fatalf("ReadJSON() exists = true, want false")
	}
}

func TestReadJSONCorrupt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	var out map[string]any
	_, err := ReadJSON(path, &out)
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("ReadJSON() error = %v, want ErrDecodeFailed", err)
	}
}

func TestWithLockSerializes(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), ".fslocks")
	if err := EnsureDir(root, 0o700); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	lockPath, err := BuildLockPath(root, "users.main")
	if err != nil {
		t.Fatalf("BuildLockPath() error = %v", err)
	}

	counter := 0
	err = WithLock(context.Background(), lockPath, func() error {
		counter++
		// The lock file must exist while held.
		if _, statErr := os.Stat(lockPath); statErr != nil {
			t.Errorf("Stat(lock) error = %v, want held lock file", statErr)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithLock() error = %v", err)
	}
	if counter != 1 {
		t.Fatalf("WithLock() ran fn %d times, want 1", counter)
	}
	if _, statErr := os.Stat(lockPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("Stat(lock) after release = %v, want not exist", statErr)
	}
}

func TestWithLockPropagatesError(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), ".fslocks")
	if err := EnsureDir(root, 0o700); err != nil {
		t.Fatalf("EnsureDir() error = %v", err)
	}
	lockPath, err := BuildLockPath(root, "users.main")
	if err != nil {
		t.Fatalf("BuildLockPath() error = %v", err)
	}

	wantErr := errors.New("boom")
	err = WithLock(context.Background(), lockPath, func() error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("WithLock() error = %v, want %v", err, wantErr)
	}
	if _, statErr := os.Stat(lockPath); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("Stat(lock) after error = %v, want not exist", statErr)
	}
}
