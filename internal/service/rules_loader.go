package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/store"
	"github.com/Harshitk-cp/reflex/internal/term"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RuleSpec is one rule as written in a rules file:
//
//	rules:
//	  - pattern: "greet(Name)"
//	    action: "log(hello(Name))"
//	    priority: 2
//	    description: say hello
type RuleSpec struct {
	Pattern     string  `yaml:"pattern" json:"pattern"`
	Action      string  `yaml:"action" json:"action"`
	Priority    float64 `yaml:"priority,omitempty" json:"priority,omitempty"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
}

type RuleFile struct {
	Rules []RuleSpec `yaml:"rules"`
}

// ParseRuleFile decodes YAML rule specs into rules. Priority defaults to 1.
func ParseRuleFile(data []byte) ([]domain.Rule, error) {
	var f RuleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules yaml: %w", err)
	}

	rules := make([]domain.Rule, 0, len(f.Rules))
	for i, entry := range f.Rules {
		r, err := entry.Rule()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		rules = append(rules, r)
	}
	return rules, nil
}

// Rule parses the pattern and action into a new rule.
func (s RuleSpec) Rule() (domain.Rule, error) {
	pattern, err := term.Parse(s.Pattern)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("%w: pattern: %w", ErrInvalidRule, err)
	}
	action, err := term.Parse(s.Action)
	if err != nil {
		return domain.Rule{}, fmt.Errorf("%w: action: %w", ErrInvalidRule, err)
	}
	if _, ok := action.(term.Struct); !ok {
		return domain.Rule{}, fmt.Errorf("%w: action must be a struct, got %s", ErrInvalidRule, action)
	}
	priority := s.Priority
	if priority == 0 {
		priority = 1
	}
	return domain.NewRule(pattern, action, priority, s.Description), nil
}

func ruleKey(r domain.Rule) string {
	return r.Pattern.String() + " -> " + r.Action.String()
}

// SyncRules makes the rules tagged with source match want. Rules whose
// pattern and action are unchanged keep their id and belief; the rest are
// added or removed. It returns the number added, updated and removed.
func SyncRules(rules *store.RuleStore, source string, want []domain.Rule) (added, updated, removed int) {
	existing := make(map[string]domain.Rule)
	for _, r := range rules.Filter(func(r domain.Rule) bool { return r.Metadata.Source == source }) {
		existing[ruleKey(r)] = r
	}

	seen := make(map[string]bool)
	for _, r := range want {
		key := ruleKey(r)
		if seen[key] {
			continue
		}
		seen[key] = true

		if cur, ok := existing[key]; ok {
			if cur.Metadata.Priority == r.Metadata.Priority && cur.Metadata.Description == r.Metadata.Description {
				continue
			}
			// Mutate re-reads the live rule so belief learned since the
			// Filter above is kept.
			_, err := rules.Mutate(cur.ID, func(live domain.Rule) (domain.Rule, error) {
				live.Metadata.Priority = r.Metadata.Priority
				live.Metadata.Description = r.Metadata.Description
				return live, nil
			})
			if err == nil {
				updated++
			}
			continue
		}
		r.Metadata.Source = source
		rules.Add(r)
		added++
	}

	for key, r := range existing {
		if !seen[key] {
			rules.Delete(r.ID)
			removed++
		}
	}
	return added, updated, removed
}

// FileSource is the rule source recorded for rules loaded from path.
func FileSource(path string) string {
	return domain.RuleSourceFile + ":" + filepath.Clean(path)
}

// RuleFileWatcher loads a YAML rules file and reloads it whenever it changes
// on disk.
type RuleFileWatcher struct {
	path   string
	rules  *store.RuleStore
	logger *zap.Logger

	debounce time.Duration
	watcher  *fsnotify.Watcher
	stopCh   chan struct{}
	doneCh   chan struct{}

	mu      sync.Mutex
	running bool
}

func NewRuleFileWatcher(path string, rules *store.RuleStore, logger *zap.Logger) *RuleFileWatcher {
	return &RuleFileWatcher{
		path:     filepath.Clean(path),
		rules:    rules,
		logger:   logger,
		debounce: 200 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Load reads the file once and syncs the store with it.
func (w *RuleFileWatcher) Load() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("read rules file: %w", err)
	}
	want, err := ParseRuleFile(data)
	if err != nil {
		return err
	}
	added, updated, removed := SyncRules(w.rules, FileSource(w.path), want)
	w.logger.Info("rules file loaded",
		zap.String("path", w.path),
		zap.Int("added", added),
		zap.Int("updated", updated),
		zap.Int("removed", removed))
	return nil
}

// Start loads the file and begins watching it. The parent directory is
// watched so that editors replacing the file by rename are seen.
func (w *RuleFileWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	if err := w.Load(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.watcher = watcher
	w.running = true

	go w.run()
	return nil
}

func (w *RuleFileWatcher) run() {
	defer close(w.doneCh)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if fire == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("rules watcher error", zap.Error(err))

		case <-fire:
			fire = nil
			if err := w.Load(); err != nil {
				// Keep the previous rules when the new file does not parse.
				w.logger.Error("rules reload failed", zap.String("path", w.path), zap.Error(err))
			}
		}
	}
}

func (w *RuleFileWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	if err := w.watcher.Close(); err != nil {
		w.logger.Warn("closing rules watcher", zap.Error(err))
	}
}
