package secrets

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeAllowlist(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestLoadAllowlists_ProjectOnly(t *testing.T) {
	dir := t.TempDir()
	writeAllowlist(t, filepath.Join(dir, ProjectAllowlistFile), `[allowlist]
paths = ['vendor/.*']
regexes = ['DEMO_KEY_[0-9]+']
`)

	got, err := LoadAllowlists(dir, "")
	if err != nil {
		t.Fatalf("LoadAllowlists() error = %v", err)
	}
	if len(got.Paths) != 1 || got.Paths[0] != `vendor/.*` {
		t.Errorf("Paths = %v", got.Paths)
	}
	if len(got.Regexes) != 1 || got.Regexes[0] != `DEMO_KEY_[0-9]+` {
		t.Errorf("Regexes = %v", got.Regexes)
	}
}

func TestLoadAllowlists_UserOnly(t *testing.T) {
	userFile := filepath.Join(t.TempDir(), "allowlist.toml")
	writeAllowlist(t, userFile, `[allowlist]
regexes = ['TEST_TOKEN']
`)

	got, err := LoadAllowlists("", userFile)
	if err != nil {
		t.Fatalf("LoadAllowlists() error = %v", err)
	}
	if len(got.Regexes) != 1 || got.Regexes[0] != "TEST_TOKEN" {
		t.Errorf("Regexes = %v", got.Regexes)
	}
	if len(got.Paths) != 0 {
		t.Errorf("Paths = %v, want empty", got.Paths)
	}
}

func TestLoadAllowlists_UnionMerge(t *testing.T) {
	projectDir := t.TempDir()
	writeAllowlist(t, filepath.Join(projectDir, ProjectAllowlistFile), `[allowlist]
regexes = ['PROJECT_PATTERN']
`)
	userFile := filepath.Join(t.TempDir(), "allowlist.toml")
	writeAllowlist(t, userFile, `[allowlist]
regexes = ['USER_PATTERN']
`)

	got, err := LoadAllowlists(projectDir, userFile)
	if err != nil {
		t.Fatalf("LoadAllowlists() error = %v", err)
	}
	if len(got.Regexes) != 2 {
		t.Fatalf("Regexes = %v, want both sources merged", got.Regexes)
	}
	if got.Regexes[0] != "PROJECT_PATTERN" || got.Regexes[1] != "USER_PATTERN" {
		t.Errorf("merge order = %v, want project then user", got.Regexes)
	}
}

func TestLoadAllowlists_MissingFilesIgnored(t *testing.T) {
	got, err := LoadAllowlists(t.TempDir(), filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadAllowlists() error = %v, missing files should be skipped", err)
	}
	if len(got.Paths) != 0 || len(got.Regexes) != 0 {
		t.Errorf("got %+v, want empty allowlist", got)
	}
}

func TestLoadAllowlists_BothEmptyPaths(t *testing.T) {
	got, err := LoadAllowlists("", "")
	if err != nil {
		t.Fatalf("LoadAllowlists() error = %v", err)
	}
	if got == nil {
		t.Fatal("want non-nil empty allowlist")
	}
}

func TestLoadAllowlists_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	writeAllowlist(t, filepath.Join(dir, ProjectAllowlistFile), "= broken =")

	_, err := LoadAllowlists(dir, "")
	if !errors.Is(err, ErrInvalidTOML) {
		t.Fatalf("error = %v, want ErrInvalidTOML", err)
	}
}

func TestLoadAllowlists_InvalidRegex(t *testing.T) {
	dir := t.TempDir()
	writeAllowlist(t, filepath.Join(dir, ProjectAllowlistFile), `[allowlist]
regexes = ['[unclosed']
`)

	_, err := LoadAllowlists(dir, "")
	if !errors.Is(err, ErrInvalidRegex) {
		t.Fatalf("error = %v, want ErrInvalidRegex", err)
	}
}

func TestLoadAllowlists_InvalidPathPattern(t *testing.T) {
	dir := t.TempDir()
	writeAllowlist(t, filepath.Join(dir, ProjectAllowlistFile), `[allowlist]
paths = ['(bad']
`)

	_, err := LoadAllowlists(dir, "")
	if !errors.Is(err, ErrInvalidRegex) {
		t.Fatalf("error = %v, want ErrInvalidRegex", err)
	}
}

func TestLoadAllowlists_EmptySections(t *testing.T) {
	dir := t.TempDir()
	writeAllowlist(t, filepath.Join(dir, ProjectAllowlistFile), `[allowlist]
`)

	got, err := LoadAllowlists(dir, "")
	if err != nil {
		t.Fatalf("LoadAllowlists() error = %v", err)
	}
	if len(got.Paths) != 0 || len(got.Regexes) != 0 {
		t.Errorf("got %+v, want empty", got)
	}
}

func TestUserAllowlistPath(t *testing.T) {
	path := UserAllowlistPath()
	if path == "" {
		t.Skip("home directory not resolvable in this environment")
	}
	want := filepath.Join(".vmem", "allowlist.toml")
	if !strings.HasSuffix(path, want) {
		t.Errorf("UserAllowlistPath() = %q, want suffix %q", path, want)
	}
}
