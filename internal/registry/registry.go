// Package registry keeps the list of onboarded customers in a JSON file and
// replaces it only by rename, so the canonical file is never half written.
//
// Files, for prefix P in the registry directory:
//
//	P_current.json          the registry
//	P_new.json              the next registry, before rotation
//	P_old_<timestamp>.json  previous registries
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/johngiles12345/cisco-iot-giles/internal/models"
)

// TimestampLayout names rotated backups, e.g. 2026_10_18_145501.
const TimestampLayout = "2006_01_02_150405"

// ErrDuplicateCustomer is returned when a name is already registered
// (compared case-insensitively).
var ErrDuplicateCustomer = errors.New("customer already registered")

// PersistError is a failed write or rename. It only happens after remote
// provisioning succeeded, so nG1 and the registry may now disagree.
type PersistError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("registry %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

type file struct {
	Customers []models.CustomerProfile `json:"Customers"`
}

// NameIndex holds lower-cased customer names.
type NameIndex map[string]struct{}

// Has reports whether name is registered, ignoring case.
func (n NameIndex) Has(name string) bool {
	_, ok := n[strings.ToLower(name)]
	return ok
}

// Registry reads and rotates the registry files.
type Registry struct {
	dir    string
	prefix string
	now    func() time.Time
}

// New returns a registry rooted at dir using prefix for file names.
func New(dir, prefix string) *Registry {
	return &Registry{dir: dir, prefix: prefix, now: time.Now}
}

// WithClock overrides the clock used for backup names.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

func (r *Registry) CurrentPath() string { return filepath.Join(r.dir, r.prefix+"_current.json") }
func (r *Registry) NewPath() string     { return filepath.Join(r.dir, r.prefix+"_new.json") }

// OldPath is the backup name for a rotation at t.
func (r *Registry) OldPath(t time.Time) string {
	return filepath.Join(r.dir, r.prefix+"_old_"+t.Format(TimestampLayout)+".json")
}

// freeBackupPath returns OldPath(t), or OldPath(t) with a _1, _2, ...
// suffix when a rotation in the same second already took that name.
// os.Rename would silently replace an existing backup.
func (r *Registry) freeBackupPath(t time.Time) (string, error) {
	base := r.OldPath(t)
	stem := strings.TrimSuffix(base, ".json")
	path := base
	for n := 1; ; n++ {
		_, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", err
		}
		path = fmt.Sprintf("%s_%d.json", stem, n)
	}
}

// LoadAll reads the current registry. A missing file is an empty registry.
func (r *Registry) LoadAll() ([]models.CustomerProfile, NameIndex, error) {
	data, err := os.ReadFile(r.CurrentPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, NameIndex{}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("reading registry: %w", err)
	}
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("parsing registry %s: %w", r.CurrentPath(), err)
	}
	idx := make(NameIndex, len(f.Customers))
	for _, c := range f.Customers {
		idx[strings.ToLower(c.Name)] = struct{}{}
	}
	return f.Customers, idx, nil
}

// ValidateAgainstDomainTree returns the registered customers that have no
// domain of the same name, ignoring case. The result is advisory; the caller decides.
func ValidateAgainstDomainTree(profiles []models.CustomerProfile, domains []models.DomainSummary) []string {
	names := make(map[string]bool, len(domains))
	for _, d := range domains {
		names[strings.ToLower(strings.TrimSpace(d.ServiceName))] = true
	}
	var missing []string
	for _, p := range profiles {
		if !names[strings.ToLower(strings.TrimSpace(p.Name))] {
			log.Printf("[registry] warning: customer %q has no domain on nG1", p.Name)
			missing = append(missing, p.Name)
		}
	}
	return missing
}

// AppendAndPersist writes profiles plus profile to the new file, then
// rotates: current -> old_<timestamp>, new -> current.
func (r *Registry) AppendAndPersist(profiles []models.CustomerProfile, profile models.CustomerProfile) error {
	for _, p := range profiles {
		if strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(profile.Name)) {
			return fmt.Errorf("%w: %q", ErrDuplicateCustomer, profile.Name)
		}
	}

	next := file{Customers: append(append([]models.CustomerProfile{}, profiles...), profile)}
	data, err := json.MarshalIndent(next, "", "    ")
	if err != nil {
		return &PersistError{Op: "encode", Path: r.NewPath(), Err: err}
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return &PersistError{Op: "mkdir", Path: r.dir, Err: err}
	}
	if err := writeSynced(r.NewPath(), data); err != nil {
		return &PersistError{Op: "write", Path: r.NewPath(), Err: err}
	}

	if _, err := os.Stat(r.CurrentPath()); err == nil {
		old, err := r.freeBackupPath(r.now())
		if err != nil {
			return &PersistError{Op: "stat", Path: r.OldPath(r.now()), Err: err}
		}
		if err := os.Rename(r.CurrentPath(), old); err != nil {
			return &PersistError{Op: "rotate", Path: r.CurrentPath(), Err: err}
		}
		log.Printf("[registry] rotated previous registry to %s", filepath.Base(old))
	} else if !errors.Is(err, os.ErrNotExist) {
		return &PersistError{Op: "stat", Path: r.CurrentPath(), Err: err}
	}

	if err := os.Rename(r.NewPath(), r.CurrentPath()); err != nil {
		return &PersistError{Op: "rename", Path: r.NewPath(), Err: err}
	}
	log.Printf("[registry] %s now holds %d customers", filepath.Base(r.CurrentPath()), len(next.Customers))
	return nil
}

func writeSynced(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
