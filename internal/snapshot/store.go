// Package snapshot implements the content-addressed version store backing
// `devlake run` snapshots and `devlake checkout`.
//
// Layout per project:
//
//	<project>/.devlake/data/<branch>/     live engine state for a branch
//	<project>/.devlake/versions/<hash>/   immutable snapshot of a data version
//
// A snapshot is a full copy of the branch data directory, plus a
// .manifest.json of per-file xxh3 checksums that checkout uses to verify the
// restored tree. Cloud-origin versions have no local data; they record a
// metadata.json instead.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"
)

// ErrVersionNotFound is returned by Checkout when no snapshot exists for the
// requested hash. The branch directory is left untouched.
var ErrVersionNotFound = errors.New("data version not found")

// manifestName is the checksum manifest written into each snapshot. It is not
// part of the branch data and is skipped when restoring.
const manifestName = ".manifest.json"

// copyWorkers bounds the parallel file copies performed per tree.
const copyWorkers = 4

// Store is a snapshot store rooted at one project directory.
type Store struct {
	project string
}

// NewStore returns a Store for the given project root.
func NewStore(project string) *Store {
	return &Store{project: project}
}

// DataDir returns the live data directory for branch.
func (s *Store) DataDir(branch string) string {
	return filepath.Join(s.project, ".devlake", "data", branch)
}

// VersionDir returns the snapshot directory for hash.
func (s *Store) VersionDir(hash string) string {
	return filepath.Join(s.project, ".devlake", "versions", hash)
}

// Exists reports whether a snapshot is stored under hash.
func (s *Store) Exists(hash string) bool {
	info, err := os.Stat(s.VersionDir(hash))
	return err == nil && info.IsDir()
}

// Create snapshots the branch's current data directory under hash. It is
// idempotent: if a snapshot for hash already exists nothing is copied. When
// the branch has no data directory (e.g. no local step ran) nothing is
// recorded and a warning is logged; this is not an error. The returned bool
// reports whether a new snapshot was written.
func (s *Store) Create(branch, hash string) (bool, error) {
	versionDir := s.VersionDir(hash)
	if s.Exists(hash) {
		log.Printf("snapshot: version %s already exists, skipping creation", hash)
		return false, nil
	}

	dataDir := s.DataDir(branch)
	if _, err := os.Stat(dataDir); err != nil {
		log.Printf("snapshot: WARNING no local data at %s to snapshot", dataDir)
		return false, nil
	}

	if err := os.MkdirAll(filepath.Dir(versionDir), 0o755); err != nil {
		return false, fmt.Errorf("snapshot: create versions directory: %w", err)
	}

	sums, err := copyTree(dataDir, versionDir)
	if err != nil {
		// Do not leave a half-written snapshot behind: Exists would treat it
		// as complete on the next run.
		_ = os.RemoveAll(versionDir)
		return false, fmt.Errorf("snapshot: copy branch state: %w", err)
	}

	if err := writeManifest(filepath.Join(versionDir, manifestName), sums); err != nil {
		_ = os.RemoveAll(versionDir)
		return false, err
	}

	log.Printf("snapshot: created version %s from branch %s (%d files)", hash, branch, len(sums))
	return true, nil
}

// Checkout destroys the branch's current data directory and replaces it with
// the snapshot stored under hash. It fails with ErrVersionNotFound before any
// mutation when the snapshot does not exist. Prior uncommitted branch state
// is lost; callers wanting to preserve it must snapshot first.
func (s *Store) Checkout(branch, hash string) error {
	versionDir := s.VersionDir(hash)
	if !s.Exists(hash) {
		return fmt.Errorf("%w: %s", ErrVersionNotFound, hash)
	}

	dataDir := s.DataDir(branch)
	if err := os.RemoveAll(dataDir); err != nil {
		return fmt.Errorf("snapshot: clear branch directory: %w", err)
	}

	sums, err := copyTree(versionDir, dataDir)
	if err != nil {
		return fmt.Errorf("snapshot: restore version %s: %w", hash, err)
	}

	if err := verifyManifest(filepath.Join(versionDir, manifestName), sums); err != nil {
		return fmt.Errorf("snapshot: verify restored version %s: %w", hash, err)
	}

	log.Printf("snapshot: branch %s now uses data from version %s", branch, hash)
	return nil
}

// Versions lists the stored snapshot hashes in lexical order.
func (s *Store) Versions() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.project, ".devlake", "versions"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var hashes []string
	for _, e := range entries {
		if e.IsDir() {
			hashes = append(hashes, e.Name())
		}
	}
	sort.Strings(hashes)
	return hashes, nil
}

// CloudMetadata is recorded in place of a data copy for cloud-origin runs.
type CloudMetadata struct {
	Source       string    `json:"source"`
	PipelineHash string    `json:"pipeline_hash"`
	Timestamp    time.Time `json:"timestamp"`
	JobID        string    `json:"job_id"`
	OutputURI    string    `json:"output_uri"`
}

// WriteCloudMetadata records a cloud-origin version: the snapshot directory
// holds a metadata.json instead of branch data.
func (s *Store) WriteCloudMetadata(hash string, meta CloudMetadata) error {
	versionDir := s.VersionDir(hash)
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return fmt.Errorf("snapshot: create version directory: %w", err)
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: encode cloud metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(versionDir, "metadata.json"), data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write cloud metadata: %w", err)
	}
	log.Printf("snapshot: cloud metadata recorded for version %s", hash)
	return nil
}

// copyTree recursively copies src into dst (which must not exist yet) and
// returns per-file xxh3 checksums keyed by slash-separated relative path.
// The manifest file itself is never copied. File copies run in a bounded
// worker group; directories are created up front so workers never race on
// them.
func copyTree(src, dst string) (map[string]string, error) {
	type fileCopy struct {
		rel string
		src string
		dst string
	}
	var files []fileCopy

	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(filepath.Join(dst, rel), 0o755)
		}
		// Only the store's own manifest at the tree root is excluded; a user
		// file with the same name deeper in the branch is ordinary data.
		if filepath.ToSlash(rel) == manifestName {
			return nil
		}
		files = append(files, fileCopy{
			rel: filepath.ToSlash(rel),
			src: path,
			dst: filepath.Join(dst, rel),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	var (
		mu   sync.Mutex
		sums = make(map[string]string, len(files))
	)
	g := new(errgroup.Group)
	g.SetLimit(copyWorkers)
	for _, fc := range files {
		fc := fc
		g.Go(func() error {
			sum, err := copyFile(fc.src, fc.dst)
			if err != nil {
				return err
			}
			mu.Lock()
			sums[fc.rel] = sum
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sums, nil
}

// copyFile copies one file and returns the hex xxh3 checksum of its content.
func copyFile(src, dst string) (string, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", err
	}

	h := xxh3.New()
	if _, err := io.Copy(io.MultiWriter(out, h), in); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return strconv.FormatUint(h.Sum64(), 16), nil
}

func writeManifest(path string, sums map[string]string) error {
	data, err := json.MarshalIndent(sums, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("snapshot: write manifest: %w", err)
	}
	return nil
}

// verifyManifest compares restored-file checksums against the snapshot's
// manifest. Snapshots written without a manifest (or cloud metadata records)
// are accepted as-is.
func verifyManifest(path string, got map[string]string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	var want map[string]string
	if err := json.Unmarshal(data, &want); err != nil {
		return fmt.Errorf("decode manifest: %w", err)
	}
	for rel, sum := range want {
		if got[rel] != sum {
			return fmt.Errorf("checksum mismatch for %s", rel)
		}
	}
	return nil
}
