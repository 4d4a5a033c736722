// Package policy implements the allow/deny/confirm gate (C3): a static
// action→category table (owned by internal/wire), a deterministic
// six-rule evaluator, and a hot-reloading on-disk policy file.
package policy

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agent-browser/daemon/internal/wire"
)

// Decision is the result of evaluating an action against a policy.
type Decision string

const (
	Allow   Decision = "allow"
	Deny    Decision = "deny"
	Confirm Decision = "confirm"
)

// Default is the fallback disposition a policy declares for categories it
// doesn't otherwise mention.
type Default string

const (
	DefaultAllow Default = "allow"
	DefaultDeny  Default = "deny"
)

// Policy is the in-memory evaluation input: {default, allow?, deny?} plus
// an independent confirm set.
type Policy struct {
	Default Default
	Allow   map[wire.Category]bool
	Deny    map[wire.Category]bool
	Confirm map[wire.Category]bool
}

// file is the on-disk YAML shape loaded from disk: `{default, allow?,
// deny?}` plus an independent confirm list.
type file struct {
	Default Default  `yaml:"default"`
	Allow   []string `yaml:"allow,omitempty"`
	Deny    []string `yaml:"deny,omitempty"`
	Confirm []string `yaml:"confirm,omitempty"`
}

// Evaluate applies the six-rule algorithm in strict order to action's
// static category. A nil policy means "no policy configured" (rule 4), not
// "deny everything".
func Evaluate(action wire.Action, p *Policy) Decision {
	return EvaluateCategory(wire.CategoryFor(action), p)
}

// EvaluateCategory applies the six-rule algorithm against an
// already-resolved category, letting a caller gate a request whose
// effective category isn't its action's static one (wire.CategoryForRequest's
// upload exception).
func EvaluateCategory(category wire.Category, p *Policy) Decision {
	// Rule 1: _internal is never user-configurable.
	if category == wire.CategoryInternal {
		return Allow
	}
	if p == nil {
		// Rule 4 short-circuits before allow/deny/confirm lists are
		// consulted, but an action-specific confirm set still needs the
		// policy value to exist; a nil policy therefore skips rule 3 too.
		return Allow
	}
	// Rule 2: deny always wins.
	if p.Deny[category] {
		return Deny
	}
	// Rule 3.
	if p.Confirm[category] {
		return Confirm
	}
	// Rule 5.
	if p.Allow[category] {
		return Allow
	}
	// Rule 6.
	if p.Default == DefaultDeny {
		return Deny
	}
	return Allow
}

// knownCategories is used to flag, not reject, unrecognized category
// strings found in a loaded policy file: produce a warning but do not fail.
var knownCategories = map[wire.Category]bool{
	wire.CategoryNavigate: true, wire.CategoryClick: true, wire.CategoryFill: true,
	wire.CategoryDownload: true, wire.CategoryUpload: true, wire.CategoryEval: true,
	wire.CategorySnapshot: true, wire.CategoryScroll: true, wire.CategoryWait: true,
	wire.CategoryGet: true, wire.CategoryNetwork: true, wire.CategoryState: true,
	wire.CategoryInteract: true, wire.CategoryInternal: true,
}

// ParseError is returned by Load/Parse when the file fails to decode, or
// `default` is missing or not allow|deny.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("policy: %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("policy: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes YAML bytes into a Policy, validating `default` and warning
// (via the returned warnings slice, never failing) on unrecognized category
// strings.
func Parse(data []byte) (*Policy, []string, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, &ParseError{Err: fmt.Errorf("decode yaml: %w", err)}
	}
	if f.Default != DefaultAllow && f.Default != DefaultDeny {
		return nil, nil, &ParseError{Err: fmt.Errorf("default must be \"allow\" or \"deny\", got %q", f.Default)}
	}

	var warnings []string
	toSet := func(kind string, names []string) map[wire.Category]bool {
		set := make(map[wire.Category]bool, len(names))
		for _, n := range names {
			c := wire.Category(n)
			if !knownCategories[c] {
				warnings = append(warnings, fmt.Sprintf("%s: unrecognized category %q", kind, n))
			}
			set[c] = true
		}
		return set
	}

	p := &Policy{
		Default: f.Default,
		Allow:   toSet("allow", f.Allow),
		Deny:    toSet("deny", f.Deny),
		Confirm: toSet("confirm", f.Confirm),
	}
	return p, warnings, nil
}

// Store holds the current policy plus the mtime/cooldown bookkeeping for
// disk-backed hot reload. Safe for concurrent use.
type Store struct {
	path string

	mu          sync.RWMutex
	policy      *Policy
	lastMod     time.Time
	lastChecked time.Time
	warnFn      func(warnings []string)
}

// minReloadInterval bounds filesystem stat traffic to once every 5 seconds.
const minReloadInterval = 5 * time.Second

// NewStore constructs a Store reading from path. It performs an initial
// load; if the file does not exist, the store behaves as if no policy is
// configured (nil Policy, Evaluate's rule 4).
func NewStore(path string, warnFn func(warnings []string)) (*Store, error) {
	s := &Store{path: path, warnFn: warnFn}
	if err := s.reload(); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return s, nil
}

// Current returns the active policy, reloading from disk first if the
// cooldown has elapsed and the file's mtime has changed.
func (s *Store) Current() *Policy {
	s.maybeReload()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// ForceReload clears the cooldown and reloads immediately, used by the
// fsnotify watcher when a filesystem event fires.
func (s *Store) ForceReload() error {
	s.mu.Lock()
	s.lastChecked = time.Time{}
	s.mu.Unlock()
	return s.reload()
}

func (s *Store) maybeReload() {
	s.mu.RLock()
	sinceCheck := time.Since(s.lastChecked)
	s.mu.RUnlock()
	if sinceCheck < minReloadInterval {
		return
	}
	_ = s.reload()
}

func (s *Store) reload() error {
	info, err := os.Stat(s.path)
	s.mu.Lock()
	s.lastChecked = time.Now()
	s.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.policy = nil
			s.mu.Unlock()
			return err
		}
		return fmt.Errorf("policy: stat %s: %w", s.path, err)
	}

	s.mu.RLock()
	unchanged := info.ModTime().Equal(s.lastMod)
	s.mu.RUnlock()
	if unchanged {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("policy: read %s: %w", s.path, err)
	}
	p, warnings, err := Parse(data)
	if err != nil {
		return &ParseError{Path: s.path, Err: err}
	}
	if len(warnings) > 0 && s.warnFn != nil {
		s.warnFn(warnings)
	}

	s.mu.Lock()
	s.policy = p
	s.lastMod = info.ModTime()
	s.mu.Unlock()
	return nil
}
