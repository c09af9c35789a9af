package snapshot

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// writeBranch populates a branch data directory with the given files
// (relative path -> content).
func writeBranch(t *testing.T, s *Store, branch string, files map[string]string) {
	t.Helper()
	dir := s.DataDir(branch)
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", dir, err)
	}
	return out
}

func TestCreate_CopiesBranchState(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir())
	files := map[string]string{
		"devlake.db":     "engine-bytes",
		"sub/extra.dat":  "nested",
		"sub/deep/x.txt": "deep",
	}
	writeBranch(t, s, "main", files)

	created, err := s.Create("main", "abc12345")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !created {
		t.Fatalf("Create() = false, want new snapshot")
	}
	if !s.Exists("abc12345") {
		t.Fatalf("Exists() = false after Create")
	}

	got := readTree(t, s.VersionDir("abc12345"))
	for rel, content := range files {
		if got[rel] != content {
			t.Errorf("snapshot %s = %q, want %q", rel, got[rel], content)
		}
	}
	if _, ok := got[manifestName]; !ok {
		t.Errorf("snapshot missing checksum manifest")
	}
}

func TestCreate_Idempotent(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir())
	writeBranch(t, s, "main", map[string]string{"devlake.db": "v1"})

	if _, err := s.Create("main", "deadbeef"); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}

	// Mutate branch state; a second Create for the same hash must not copy.
	writeBranch(t, s, "main", map[string]string{"devlake.db": "v2"})
	created, err := s.Create("main", "deadbeef")
	if err != nil {
		t.Fatalf("second Create() error = %v", err)
	}
	if created {
		t.Fatalf("second Create() = true, want no-op")
	}

	data, err := os.ReadFile(filepath.Join(s.VersionDir("deadbeef"), "devlake.db"))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if string(data) != "v1" {
		t.Fatalf("snapshot content = %q, want original v1", data)
	}
}

func TestCreate_NoBranchDataIsNotAnError(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir())
	created, err := s.Create("main", "cafe0001")
	if err != nil {
		t.Fatalf("Create() error = %v, want warning-only behavior", err)
	}
	if created {
		t.Fatalf("Create() = true, want false when branch has no data")
	}
	if s.Exists("cafe0001") {
		t.Fatalf("Exists() = true, want no version directory recorded")
	}
}

func TestCheckout_MissingVersion(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir())
	writeBranch(t, s, "main", map[string]string{"devlake.db": "precious"})

	err := s.Checkout("main", "00000000")
	if !errors.Is(err, ErrVersionNotFound) {
		t.Fatalf("Checkout() error = %v, want ErrVersionNotFound", err)
	}

	// Branch state must be untouched.
	data, err := os.ReadFile(filepath.Join(s.DataDir("main"), "devlake.db"))
	if err != nil || string(data) != "precious" {
		t.Fatalf("branch data after failed checkout = %q, %v; want untouched", data, err)
	}
}

func TestCheckout_RoundTrip(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir())
	files := map[string]string{
		"devlake.db":    "version-one",
		"sub/extra.dat": "nested",
	}
	writeBranch(t, s, "main", files)
	if _, err := s.Create("main", "11111111"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Diverge the branch, then restore.
	writeBranch(t, s, "main", map[string]string{
		"devlake.db": "diverged",
		"junk.tmp":   "to be destroyed",
	})
	if err := s.Checkout("main", "11111111"); err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}

	got := readTree(t, s.DataDir("main"))
	if len(got) != len(files) {
		t.Fatalf("restored tree = %v, want exactly %v", got, files)
	}
	for rel, content := range files {
		if got[rel] != content {
			t.Errorf("restored %s = %q, want %q", rel, got[rel], content)
		}
	}
}

func TestNestedManifestNameIsUserData(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir())
	files := map[string]string{
		"devlake.db":         "engine",
		"sub/.manifest.json": "user data, not the store's",
	}
	writeBranch(t, s, "main", files)
	if _, err := s.Create("main", "33330000"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Only the root-level manifest is the store's own; the nested file is
	// branch data and must be captured.
	snap := readTree(t, s.VersionDir("33330000"))
	if snap["sub/.manifest.json"] != files["sub/.manifest.json"] {
		t.Fatalf("snapshot sub/.manifest.json = %q, want user content", snap["sub/.manifest.json"])
	}

	// And it must survive a restore.
	writeBranch(t, s, "main", map[string]string{"devlake.db": "diverged"})
	if err := s.Checkout("main", "33330000"); err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}
	got := readTree(t, s.DataDir("main"))
	if got["sub/.manifest.json"] != files["sub/.manifest.json"] {
		t.Fatalf("restored sub/.manifest.json = %q, want user content", got["sub/.manifest.json"])
	}
}

func TestCheckout_BranchIsolation(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir())
	writeBranch(t, s, "main", map[string]string{"devlake.db": "main-data"})
	writeBranch(t, s, "dev", map[string]string{"devlake.db": "dev-data"})
	if _, err := s.Create("main", "22222222"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := s.Checkout("dev", "22222222"); err != nil {
		t.Fatalf("Checkout() error = %v", err)
	}

	// dev now holds the snapshot; main is untouched.
	mainData, _ := os.ReadFile(filepath.Join(s.DataDir("main"), "devlake.db"))
	devData, _ := os.ReadFile(filepath.Join(s.DataDir("dev"), "devlake.db"))
	if string(mainData) != "main-data" {
		t.Errorf("main branch mutated by checkout of dev: %q", mainData)
	}
	if string(devData) != "main-data" {
		t.Errorf("dev branch = %q, want snapshot content", devData)
	}
}

func TestVersions(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir())

	hashes, err := s.Versions()
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	if len(hashes) != 0 {
		t.Fatalf("Versions() = %v, want empty for fresh project", hashes)
	}

	writeBranch(t, s, "main", map[string]string{"devlake.db": "x"})
	for _, h := range []string{"bbbb0000", "aaaa0000"} {
		if _, err := s.Create("main", h); err != nil {
			t.Fatalf("Create(%s) error = %v", h, err)
		}
	}

	hashes, err = s.Versions()
	if err != nil {
		t.Fatalf("Versions() error = %v", err)
	}
	if len(hashes) != 2 || hashes[0] != "aaaa0000" || hashes[1] != "bbbb0000" {
		t.Fatalf("Versions() = %v, want sorted [aaaa0000 bbbb0000]", hashes)
	}
}

func TestWriteCloudMetadata(t *testing.T) {
	t.Parallel()

	s := NewStore(t.TempDir())
	meta := CloudMetadata{
		Source:       "Cloud Storage (AWS)",
		PipelineHash: "feed0001",
		Timestamp:    time.Now().UTC(),
		JobID:        "devlake-cloud-run-test",
		OutputURI:    "s3://devlake-output/devlake-cloud-run-test/",
	}
	if err := s.WriteCloudMetadata("feed0001", meta); err != nil {
		t.Fatalf("WriteCloudMetadata() error = %v", err)
	}
	if !s.Exists("feed0001") {
		t.Fatalf("Exists() = false after cloud metadata write")
	}

	data, err := os.ReadFile(filepath.Join(s.VersionDir("feed0001"), "metadata.json"))
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var got CloudMetadata
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("decode metadata: %v", err)
	}
	if got.PipelineHash != meta.PipelineHash || got.OutputURI != meta.OutputURI {
		t.Fatalf("metadata = %+v, want %+v", got, meta)
	}
}
