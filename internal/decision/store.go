package decision

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no decision exists for a key.
	ErrNotFound = errors.New("decision not found")
	// ErrInvalidKey is returned for keys that fail ValidateKey.
	ErrInvalidKey = errors.New("invalid decision key")
	// ErrNotPending is returned when resolving a decision that is not pending.
	ErrNotPending = errors.New("decision is not pending")
)

// validKey matches alphanumeric, dash, underscore, colon and dot characters only.
var validKey = regexp.MustCompile(`^[a-zA-Z0-9._:-]+$`)

// ValidateKey rejects keys that could cause path traversal.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: must not be empty", ErrInvalidKey)
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("%w: must not contain '..'", ErrInvalidKey)
	}
	if !validKey.MatchString(key) {
		return fmt.Errorf("%w: only alphanumeric, dash, underscore, colon, and dot are allowed", ErrInvalidKey)
	}
	return nil
}

// Status is the state of a quota decision.
type Status string

const (
	StatusPending  Status = "pending"
	StatusOverride Status = "override"
	StatusReroute  Status = "reroute"
	StatusConsumed Status = "consumed"
)

// ParseChoice maps user input to a resolving status.
func ParseChoice(s string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(s))) {
	case StatusOverride, "allow":
		return StatusOverride, nil
	case StatusReroute, "deny":
		return StatusReroute, nil
	default:
		return "", fmt.Errorf("unknown decision %q: expected override or reroute", s)
	}
}

// Pending describes why a decision was requested.
type Pending struct {
	Category     string   `json:"category"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
	Reason       string   `json:"reason"`
	SlotsUsed    int      `json:"slots_used"`
	SlotsMax     int      `json:"slots_max"`
}

// Decision is one stored user choice point.
type Decision struct {
	Pending

	Key        string     `json:"key"`
	Status     Status     `json:"status"`
	Choice     Status     `json:"choice,omitempty"` // override or reroute, kept after consumption
	Round      int        `json:"round"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	ConsumedAt *time.Time `json:"consumed_at,omitempty"`
}

// Store manages decision files on disk.
type Store struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates a Store backed by the given directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create decision directory: %w", err)
	}
	return &Store{dir: dir, now: func() time.Time { return time.Now().UTC() }}, nil
}

// DefaultDir returns the default decision store directory.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "mealguard-decisions")
	}
	return filepath.Join(home, ".mealguard", "decisions")
}

// Request registers a pending decision.
// No-op while a decision for key is pending or resolved but unconsumed.
// A consumed decision starts a new pending round.
func (s *Store) Request(key string, p Pending) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	round := 1
	existing, err := s.read(key)
	switch {
	case err == nil && existing.Status != StatusConsumed:
		return nil
	case err == nil:
		round = existing.Round + 1
	case !errors.Is(err, ErrNotFound):
		return err
	}

	d := Decision{
		Key:       key,
		Status:    StatusPending,
		Round:     round,
		Pending:   p,
		CreatedAt: s.now(),
	}
	return s.writeAtomic(s.path(key), d)
}

// Resolve records the user's choice on a pending decision.
func (s *Store) Resolve(key string, choice Status) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if choice != StatusOverride && choice != StatusReroute {
		return fmt.Errorf("invalid choice %q", choice)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.read(key)
	if err != nil {
		return fmt.Errorf("decision %q: %w", key, err)
	}
	if d.Status != StatusPending {
		return fmt.Errorf("decision %q is %s: %w", key, d.Status, ErrNotPending)
	}

	now := s.now()
	d.Status = choice
	d.Choice = choice
	d.ResolvedAt = &now
	return s.writeAtomic(s.path(key), *d)
}

// Check returns the current status of a decision.
func (s *Store) Check(key string) (Status, error) {
	d, err := s.Get(key)
	if err != nil {
		return "", err
	}
	return d.Status, nil
}

// Get returns the full decision record.
func (s *Store) Get(key string) (*Decision, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.read(key)
	if err != nil {
		return nil, fmt.Errorf("decision %q: %w", key, err)
	}
	return d, nil
}

// Consume marks a resolved decision as used. Each resolution unlocks once.
func (s *Store) Consume(key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.read(key)
	if err != nil {
		return fmt.Errorf("decision %q: %w", key, err)
	}
	switch d.Status {
	case StatusConsumed:
		return fmt.Errorf("decision %q already consumed", key)
	case StatusPending:
		return fmt.Errorf("decision %q is still pending", key)
	}

	now := s.now()
	d.Status = StatusConsumed
	d.ConsumedAt = &now
	return s.writeAtomic(s.path(key), *d)
}

// List returns all decisions, sorted by key.
func (s *Store) List() ([]Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Decision
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		d, err := s.read(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// ListPending returns decisions awaiting a user choice.
func (s *Store) ListPending() ([]Decision, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	var out []Decision
	for _, d := range all {
		if d.Status == StatusPending {
			out = append(out, d)
		}
	}
	return out, nil
}

// Cleanup removes all decision files in the store.
func (s *Store) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var errs []error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *Store) read(key string) (*Decision, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var d Decision
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("corrupt decision file: %w", err)
	}
	return &d, nil
}

func (s *Store) writeAtomic(path string, d Decision) error {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
