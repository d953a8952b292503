// Package archive is the on-disk, per-source, per-date artifact store.
// Layout under the root:
//
//	<key>/<date>-<artifact>.<ext>      image artifacts
//	<key>/<date>.manifest.json         entry manifest (fingerprints, texts)
//	<key>/latest                       pointer file holding the newest date
//
// The pointer and manifest are replaced by temp-write + rename so a
// concurrent reader never sees a dangling or half-written reference.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"stripd/internal/strips"
)

// WriteError is a filesystem failure during Commit. The previous entry
// and latest pointer are untouched when one is returned.
type WriteError struct {
	Source string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Source, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Artifact is one extracted item handed to Commit. Image artifacts carry
// Data; text artifacts carry Text and are stored in the manifest only.
type Artifact struct {
	Name string
	Kind strips.Kind
	Data []byte
	Text string
}

// StoredArtifact is the persisted record of one artifact.
type StoredArtifact struct {
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	File           string `json:"file,omitempty"`
	SHA256         string `json:"sha256,omitempty"`
	Text           string `json:"text,omitempty"`
	UnchangedSince string `json:"unchanged_since,omitempty"`
}

// Entry is the persisted artifact set for one source on one date.
type Entry struct {
	Source    string           `json:"source"`
	Date      string           `json:"date"`
	Artifacts []StoredArtifact `json:"artifacts"`
}

// Artifact returns the stored artifact with the given name, or nil.
func (e *Entry) Artifact(name string) *StoredArtifact {
	for i := range e.Artifacts {
		if e.Artifacts[i].Name == name {
			return &e.Artifacts[i]
		}
	}
	return nil
}

type debugLogger interface {
	Debugf(string, ...any)
}

// Store reads and writes archive entries below a root directory. A Store
// may be shared across sources; per-source commits must not race with
// themselves, which holds because the aggregator issues one commit per
// key per run.
type Store struct {
	root string
	log  debugLogger
}

func NewStore(root string, log debugLogger) *Store {
	return &Store{root: root, log: log}
}

func (s *Store) Root() string { return s.root }

func (s *Store) sourceDir(key string) string {
	return filepath.Join(s.root, key)
}

func (s *Store) manifestPath(key, date string) string {
	return filepath.Join(s.sourceDir(key), date+".manifest.json")
}

func (s *Store) pointerPath(key string) string {
	return filepath.Join(s.sourceDir(key), "latest")
}

// Entry loads the manifest for (key, date). A missing manifest is not an
// error; it returns nil.
func (s *Store) Entry(key, date string) (*Entry, error) {
	b, err := os.ReadFile(s.manifestPath(key, date))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &WriteError{Source: key, Err: err}
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, &WriteError{Source: key, Err: err}
	}
	return &e, nil
}

// Latest resolves the per-source pointer to its entry date without
// scanning the directory. Empty when no entry has ever been committed.
func (s *Store) Latest(key string) string {
	b, err := os.ReadFile(s.pointerPath(key))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// LatestEntry loads the entry the pointer references, or nil.
func (s *Store) LatestEntry(key string) (*Entry, error) {
	date := s.Latest(key)
	if date == "" {
		return nil, nil
	}
	return s.Entry(key, date)
}

// HasChanged compares fresh bytes against the stored fingerprint for
// (key, date, artifact). True when no fingerprint exists or it differs.
func (s *Store) HasChanged(key, date, artifact string, fresh []byte) bool {
	entry, err := s.Entry(key, date)
	if err != nil || entry == nil {
		return true
	}
	a := entry.Artifact(artifact)
	if a == nil {
		return true
	}
	return a.SHA256 != fingerprint(fresh)
}

// Commit persists the artifact set for (key, date) all-or-nothing: every
// image is staged to a temp file first, then renamed into place, then the
// manifest is written, then the latest pointer is refreshed. Re-committing
// identical bytes is a no-op for the stored files but still refreshes the
// pointer when date is the newest seen. The pointer never moves backward.
func (s *Store) Commit(key, date string, artifacts []Artifact) (*Entry, error) {
	dir := s.sourceDir(key)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &WriteError{Source: key, Err: err}
	}

	existing, err := s.Entry(key, date)
	if err != nil {
		return nil, err
	}
	prev, err := s.LatestEntry(key)
	if err != nil {
		return nil, err
	}

	entry := &Entry{Source: key, Date: date}
	type staged struct {
		tmp, final string
		created    bool // final did not exist before this commit
	}
	var stage []staged

	abort := func(cause error) (*Entry, error) {
		for _, st := range stage {
			_ = os.Remove(st.tmp)
		}
		if we, ok := cause.(*WriteError); ok {
			return nil, we
		}
		return nil, &WriteError{Source: key, Err: cause}
	}

	for _, a := range artifacts {
		if a.Kind == strips.KindText {
			entry.Artifacts = append(entry.Artifacts, StoredArtifact{
				Name: a.Name,
				Kind: a.Kind.String(),
				Text: a.Text,
			})
			continue
		}

		ext, err := SniffExt(a.Data)
		if err != nil {
			return abort(fmt.Errorf("artifact %s: %w", a.Name, err))
		}
		sum := fingerprint(a.Data)
		name := fmt.Sprintf("%s-%s.%s", date, a.Name, ext)

		stored := StoredArtifact{
			Name:   a.Name,
			Kind:   a.Kind.String(),
			File:   name,
			SHA256: sum,
		}

		// Carry the unchanged-since chain forward when today's bytes
		// match the previous entry's.
		if prev != nil && prev.Date != date {
			if pa := prev.Artifact(a.Name); pa != nil && pa.SHA256 == sum {
				stored.UnchangedSince = pa.UnchangedSince
				if stored.UnchangedSince == "" {
					stored.UnchangedSince = prev.Date
				}
			}
		}

		entry.Artifacts = append(entry.Artifacts, stored)

		// Identical bytes already on disk for this entry: leave the file
		// alone.
		if ea := artifactFor(existing, a.Name); ea != nil && ea.SHA256 == sum && ea.File == name {
			continue
		}

		tmp := filepath.Join(dir, name+".tmp")
		if err := os.WriteFile(tmp, a.Data, 0644); err != nil {
			return abort(err)
		}
		final := filepath.Join(dir, name)
		_, statErr := os.Stat(final)
		stage = append(stage, staged{tmp: tmp, final: final, created: os.IsNotExist(statErr)})
	}

	for i, st := range stage {
		if err := os.Rename(st.tmp, st.final); err != nil {
			// Roll back the files this commit introduced. A file replaced
			// in place keeps its new bytes, but the old manifest still
			// records the old fingerprint, so the next run re-commits it.
			for _, done := range stage[:i] {
				if done.created {
					_ = os.Remove(done.final)
				}
			}
			stage = stage[i:]
			return abort(err)
		}
	}

	manifest, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, &WriteError{Source: key, Err: err}
	}
	if err := writeFileAtomic(s.manifestPath(key, date), manifest); err != nil {
		return nil, &WriteError{Source: key, Err: err}
	}

	if latest := s.Latest(key); latest == "" || latest <= date {
		if err := writeFileAtomic(s.pointerPath(key), []byte(date+"\n")); err != nil {
			return nil, &WriteError{Source: key, Err: err}
		}
	} else if s.log != nil {
		s.log.Debugf("%s: keeping latest=%s, committed older %s\n", key, latest, date)
	}

	return entry, nil
}

func artifactFor(e *Entry, name string) *StoredArtifact {
	if e == nil {
		return nil
	}
	return e.Artifact(name)
}

func fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Fingerprint exposes the content hash used for change detection.
func Fingerprint(data []byte) string { return fingerprint(data) }

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
