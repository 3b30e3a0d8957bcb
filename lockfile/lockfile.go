// Package lockfile implements autoi18n.lock, which records a checksum of
// every source leaf per output file. Fast mode uses it to notice source
// values that changed after their translation was written.
//
// The lock file is stored alongside .autoi18n.yaml:
//
//	version: 1
//	outputs:
//	  locales/de.json:
//	    nav.home: 5d41402abc4b2a76b9719d911017c592
package lockfile

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/autoi18n/fileio"
)

// LockFileName is the default lock file name.
const LockFileName = "autoi18n.lock"

// Version is the lock file format version.
const Version = 1

// Sums maps a dotted leaf path to the checksum of its source value.
type Sums map[string]string

// LockFile holds the source checksums of every output file. It is safe
// for concurrent use by the jobs of one run.
type LockFile struct {
	Version int             `yaml:"version"`
	Outputs map[string]Sums `yaml:"outputs"`

	mu  sync.Mutex
	dir string
}

func (lf *LockFile) path() string {
	return filepath.Join(lf.dir, LockFileName)
}

// Load reads the lock file from dir. A missing file yields an empty lock.
func Load(dir string) (*LockFile, error) {
	lf := &LockFile{Version: Version, Outputs: make(map[string]Sums), dir: dir}

	data, err := os.ReadFile(lf.path())
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return lf, nil
	case err != nil:
		return nil, fmt.Errorf("reading %s: %w", lf.path(), err)
	}
	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", lf.path(), err)
	}
	if lf.Version > Version {
		return nil, fmt.Errorf("%s: unsupported version %d", lf.path(), lf.Version)
	}
	if lf.Outputs == nil {
		lf.Outputs = make(map[string]Sums)
	}
	return lf, nil
}

// Save writes the lock file atomically.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	lf.Version = Version
	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("encoding lock file: %w", err)
	}
	if err := fileio.WriteAtomic(lf.path(), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path(), err)
	}
	return nil
}

// Checksum is the recorded form of a source leaf. The key takes part so a
// value moved to another key counts as new.
func Checksum(key, value string) string {
	sum := md5.Sum([]byte(key + "\x00" + value))
	return hex.EncodeToString(sum[:])
}

// TargetKey names an output file inside the lock: its slash-separated
// path relative to the lock directory when it lies below it.
func (lf *LockFile) TargetKey(output string) string {
	if rel, err := filepath.Rel(lf.dir, output); err == nil && filepath.IsLocal(rel) {
		return filepath.ToSlash(rel)
	}
	return filepath.ToSlash(output)
}

// Tracks reports whether a checksum is recorded for key.
func (lf *LockFile) Tracks(target, key string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	_, ok := lf.Outputs[target][key]
	return ok
}

// IsChanged reports whether value differs from the recorded checksum. An
// untracked key counts as changed.
func (lf *LockFile) IsChanged(target, key, value string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	sum, ok := lf.Outputs[target][key]
	return !ok || sum != Checksum(key, value)
}

// UpdateBatch records the source values just written to target.
func (lf *LockFile) UpdateBatch(target string, entries map[string]string) {
	lf.record(target, entries, true)
}

// Adopt records entries whose keys are not tracked yet and returns how
// many were added. Translations that predate the lock get a baseline
// this way.
func (lf *LockFile) Adopt(target string, entries map[string]string) int {
	return lf.record(target, entries, false)
}

func (lf *LockFile) record(target string, entries map[string]string, overwrite bool) int {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	sums := lf.Outputs[target]
	if sums == nil {
		sums = make(Sums, len(entries))
		lf.Outputs[target] = sums
	}
	n := 0
	for key, value := range entries {
		if _, ok := sums[key]; ok && !overwrite {
			continue
		}
		sums[key] = Checksum(key, value)
		n++
	}
	return n
}

// Clean forgets keys of target that are not in keep and returns how many
// were removed.
func (lf *LockFile) Clean(target string, keep []string) int {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	sums := lf.Outputs[target]
	if len(sums) == 0 {
		return 0
	}
	live := make(map[string]bool, len(keep))
	for _, k := range keep {
		live[k] = true
	}
	removed := 0
	for k := range sums {
		if !live[k] {
			delete(sums, k)
			removed++
		}
	}
	return removed
}

// Stats returns the number of outputs and keys recorded.
func (lf *LockFile) Stats() (targets, keys int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	for _, sums := range lf.Outputs {
		keys += len(sums)
	}
	return len(lf.Outputs), keys
}

// Targets returns the recorded output keys, sorted.
func (lf *LockFile) Targets() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	targets := make([]string, 0, len(lf.Outputs))
	for t := range lf.Outputs {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// Summary describes the lock in one line, e.g.
// "2 targets, 3 keys (a.json: 2 keys, b.json: 1 keys)".
func (lf *LockFile) Summary() string {
	targets, keys := lf.Stats()
	if targets == 0 {
		return "empty"
	}
	parts := make([]string, 0, targets)
	for _, t := range lf.Targets() {
		lf.mu.Lock()
		n := len(lf.Outputs[t])
		lf.mu.Unlock()
		parts = append(parts, fmt.Sprintf("%s: %d keys", t, n))
	}
	return fmt.Sprintf("%d targets, %d keys (%s)", targets, keys, strings.Join(parts, ", "))
}
