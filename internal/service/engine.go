package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Harshitk-cp/reflex/internal/domain"
	"github.com/Harshitk-cp/reflex/internal/store"
	"github.com/Harshitk-cp/reflex/internal/term"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// errNoChange aborts a store mutation that turned out to be unnecessary.
var errNoChange = errors.New("no change")

const processingPanicMessage = "unexpected error during processing"

type EngineConfig struct {
	MaxConcurrent  int
	BatchSize      int
	// MaxRetries counts re-attempts after the first failure. A thought that
	// keeps failing becomes FAILED on attempt MaxRetries+1.
	MaxRetries     int
	TickInterval   time.Duration
	WakeInterval   time.Duration
	Epsilon        float64
	MaxErrorLength int
	// AgentName is recorded on every thought this engine processes.
	AgentName string
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxConcurrent:  5,
		BatchSize:      3,
		MaxRetries:     3,
		TickInterval:   time.Second,
		WakeInterval:   time.Second,
		Epsilon:        0.01,
		MaxErrorLength: 200,
		AgentName:      "reflex",
	}
}

func (c EngineConfig) withDefaults() EngineConfig {
	d := DefaultEngineConfig()
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = d.MaxConcurrent
	}
	if c.BatchSize <= 0 {
		c.BatchSize = d.BatchSize
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.TickInterval <= 0 {
		c.TickInterval = d.TickInterval
	}
	if c.WakeInterval <= 0 {
		c.WakeInterval = d.WakeInterval
	}
	if c.Epsilon <= 0 {
		c.Epsilon = d.Epsilon
	}
	if c.MaxErrorLength <= 0 {
		c.MaxErrorLength = d.MaxErrorLength
	}
	if c.AgentName == "" {
		c.AgentName = d.AgentName
	}
	return c
}

type EngineStatus struct {
	Running      bool     `json:"running"`
	ActiveCount  int      `json:"active_count"`
	PendingCount int      `json:"pending_count"`
	WaitingCount int      `json:"waiting_count"`
	Thoughts     int      `json:"thoughts"`
	Rules        int      `json:"rules"`
	Tools        []string `json:"tools"`
}

// Engine schedules pending thoughts, runs the matching rule or the fallback
// for each, and records the outcome.
type Engine struct {
	cfg      EngineConfig
	thoughts *store.ThoughtStore
	rules    *store.RuleStore
	registry *ToolRegistry
	tc       *ToolContext
	matcher  *RuleMatcher
	executor *ActionExecutor
	fallback *FallbackHandler
	waker    *Waker
	logger   *zap.Logger

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	active  map[string]struct{}
	rng     *rand.Rand
	running bool
	closed  bool
	stopCh  chan struct{}
	kick    chan struct{}
	wg      sync.WaitGroup

	// promptMu orders prompt answers against the attempt that asked them.
	// Lock order is promptMu, then mu.
	promptMu    sync.Mutex
	lateAnswers map[string]lateAnswer
}

// NewEngine wires an engine over the given stores. llmClient and memory may
// be nil; the tools that need them then fail.
func NewEngine(cfg EngineConfig, thoughts *store.ThoughtStore, rules *store.RuleStore, llmClient domain.LLMClient, memory MemoryBackend, logger *zap.Logger) *Engine {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		cfg:         cfg,
		thoughts:    thoughts,
		rules:       rules,
		registry:    NewToolRegistry(),
		matcher:     NewRuleMatcher(),
		logger:      logger,
		baseCtx:     ctx,
		cancel:      cancel,
		active:      make(map[string]struct{}),
		lateAnswers: make(map[string]lateAnswer),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		kick:        make(chan struct{}, 1),
	}
	e.tc = &ToolContext{
		Thoughts: thoughts,
		Rules:    rules,
		LLM:      llmClient,
		Memory:   memory,
		Now:      time.Now,
		Logger:   logger,
	}
	RegisterBuiltinTools(e.registry)
	e.executor = NewActionExecutor(e.registry, e.tc, logger)
	e.fallback = NewFallbackHandler(e.tc, logger)

	e.waker = NewWaker(thoughts, logger)
	e.waker.SetInterval(cfg.WakeInterval)
	e.waker.onWake = func(int) { e.signal() }

	return e
}

// SetRand replaces the selection randomness, e.g. with a seeded source.
func (e *Engine) SetRand(r *rand.Rand) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng = r
}

// SetClock replaces the time source used by tools and the waker.
func (e *Engine) SetClock(now func() time.Time) {
	e.tc.Now = now
	e.waker.now = now
}

// Tools exposes the engine's registry so callers can add their own tools.
func (e *Engine) Tools() *ToolRegistry {
	return e.registry
}

func (e *Engine) Thoughts() *store.ThoughtStore { return e.thoughts }

func (e *Engine) Rules() *store.RuleStore { return e.rules }

func (e *Engine) Config() EngineConfig { return e.cfg }

// Start begins the scheduling loop and the waker. Calling Start on a running
// engine is a no-op.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEngineClosed
	}
	if e.running {
		return nil
	}
	e.running = true
	e.stopCh = make(chan struct{})

	e.wg.Add(1)
	go e.loop(e.stopCh)
	e.waker.Start()

	e.logger.Info("engine started",
		zap.Int("max_concurrent", e.cfg.MaxConcurrent),
		zap.Int("batch_size", e.cfg.BatchSize),
		zap.Duration("tick", e.cfg.TickInterval))
	return nil
}

// Pause stops dispatching new work. Attempts already in flight run to
// completion.
func (e *Engine) Pause() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	close(e.stopCh)
	e.mu.Unlock()

	e.waker.Stop()
	e.logger.Info("engine paused")
}

// Close pauses the engine, cancels in-flight attempts and waits for every
// goroutine to exit. Interrupted thoughts return to PENDING.
func (e *Engine) Close() {
	e.Pause()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	e.logger.Info("engine closed")
}

func (e *Engine) loop(stopCh chan struct{}) {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		case <-e.kick:
		}

		// Keep stepping while there is work so a burst drains without
		// waiting for the next tick.
		for {
			select {
			case <-stopCh:
				return
			default:
			}
			if e.Step(e.baseCtx) == 0 {
				break
			}
		}
	}
}

func (e *Engine) signal() {
	select {
	case e.kick <- struct{}{}:
	default:
	}
}

// Step dispatches up to BatchSize eligible thoughts, bounded by
// MaxConcurrent attempts in flight, waits for them and returns how many were
// dispatched.
func (e *Engine) Step(ctx context.Context) int {
	claimed := e.claim()
	if len(claimed) == 0 {
		return 0
	}
	defer e.wg.Done()

	var g errgroup.Group
	for _, th := range claimed {
		g.Go(func() error {
			e.process(ctx, th)
			return nil
		})
	}
	_ = g.Wait()
	return len(claimed)
}

// claim selects and marks ACTIVE the thoughts for one step. The active set
// is checked and extended under the engine mutex so no thought is claimed
// twice. A non-empty claim must be released with wg.Done.
func (e *Engine) claim() []domain.Thought {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	slots := e.cfg.MaxConcurrent - len(e.active)
	if slots > e.cfg.BatchSize {
		slots = e.cfg.BatchSize
	}
	if slots <= 0 {
		return nil
	}

	candidates := e.eligible()
	var claimed []domain.Thought
	for len(claimed) < slots && len(candidates) > 0 {
		i := e.pick(candidates)
		th := candidates[i]
		candidates = append(candidates[:i], candidates[i+1:]...)

		activated, err := e.thoughts.Mutate(th.ID, func(cur domain.Thought) (domain.Thought, error) {
			if cur.Status != domain.StatusPending {
				return cur, errNoChange
			}
			cur.Status = domain.StatusActive
			cur.Metadata.Agent = e.cfg.AgentName
			return cur, nil
		})
		if err != nil {
			continue
		}
		e.active[th.ID] = struct{}{}
		claimed = append(claimed, activated)
	}
	if len(claimed) > 0 {
		// Registered under mu so Close cannot start waiting in between.
		e.wg.Add(1)
	}
	activeThoughts.Set(float64(len(e.active)))
	return claimed
}

// eligible must be called with mu held.
func (e *Engine) eligible() []domain.Thought {
	paused := make(map[string]bool)
	for _, root := range e.thoughts.Filter(func(th domain.Thought) bool {
		return th.IsRoot() && th.Metadata.TaskStatus == domain.TaskPaused
	}) {
		paused[root.ID] = true
	}

	return e.thoughts.Filter(func(th domain.Thought) bool {
		if th.Status != domain.StatusPending || th.Type == domain.ThoughtUserPrompt {
			return false
		}
		if _, busy := e.active[th.ID]; busy {
			return false
		}
		return !paused[th.Root()]
	})
}

// pick is a roulette-wheel draw weighted by priority times belief score.
// Must be called with mu held.
func (e *Engine) pick(candidates []domain.Thought) int {
	weights := make([]float64, len(candidates))
	total := 0.0
	for i, th := range candidates {
		w := th.Metadata.Priority * th.Belief.Score()
		if w < e.cfg.Epsilon {
			w = e.cfg.Epsilon
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return e.rng.Intn(len(candidates))
	}

	r := e.rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r < 0 {
			return i
		}
	}
	return len(candidates) - 1
}

func (e *Engine) process(ctx context.Context, th domain.Thought) {
	start := time.Now()

	var (
		res    ExecResult
		ruleID string
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("panic while processing thought",
					zap.String("thought_id", th.ID),
					zap.Any("panic", r))
				res = failed(fmt.Errorf("%w: %s", ErrProcessing, processingPanicMessage))
			}
		}()
		res, ruleID = e.attempt(ctx, th)
	}()

	outcome := "failed"
	func() {
		// A panic here leaves the thought ACTIVE; release fails it below.
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("panic while finalizing thought",
					zap.String("thought_id", th.ID),
					zap.Any("panic", r))
			}
		}()
		outcome = e.finalize(ctx, th, res, ruleID)
	}()
	if e.release(th.ID) {
		outcome = "failed"
	}

	RecordAttempt(outcome, time.Since(start))
}

// release ends the attempt on id: it leaves the active set, answers that
// arrived for prompts it never waited on are filed, and a thought still
// ACTIVE is forced to FAILED. It reports whether that happened.
func (e *Engine) release(id string) bool {
	e.promptMu.Lock()
	e.mu.Lock()
	delete(e.active, id)
	activeThoughts.Set(float64(len(e.active)))
	e.mu.Unlock()
	unclaimed := e.takeLateAnswers(id)
	e.promptMu.Unlock()

	for promptID, text := range unclaimed {
		e.answerUnwaitedPrompt(promptID, text)
	}

	_, err := e.thoughts.Mutate(id, func(cur domain.Thought) (domain.Thought, error) {
		if cur.Status != domain.StatusActive {
			return cur, errNoChange
		}
		cur.Status = domain.StatusFailed
		cur.Metadata.Error = e.truncate(fmt.Sprintf("%s: left active after processing", ErrProcessing))
		return cur, nil
	})
	if err != nil {
		return false
	}
	e.logger.Error("thought left active after processing", zap.String("thought_id", id))
	return true
}

func (e *Engine) attempt(ctx context.Context, th domain.Thought) (ExecResult, string) {
	m, ok := e.matcher.Match(th, e.rules.List())
	if !ok {
		RecordDispatch("fallback")
		return e.fallback.Handle(ctx, th), ""
	}

	RecordDispatch("rule")
	action := term.Substitute(m.Rule.Action, m.Bindings)
	e.logger.Debug("rule matched",
		zap.String("thought_id", th.ID),
		zap.String("rule_id", m.Rule.ID),
		zap.String("action", action.String()))

	res := e.executor.Execute(ctx, action, th)

	_, err := e.rules.Mutate(m.Rule.ID, func(r domain.Rule) (domain.Rule, error) {
		r.Belief = r.Belief.Update(res.Success)
		return r, nil
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		e.logger.Warn("failed to update rule belief", zap.String("rule_id", m.Rule.ID), zap.Error(err))
	}
	return res, m.Rule.ID
}

// finalize writes the attempt outcome onto the live thought and returns the
// metrics label for it.
func (e *Engine) finalize(ctx context.Context, th domain.Thought, res ExecResult, ruleID string) string {
	// An attempt cut short by shutdown is not the thought's fault.
	interrupted := !res.Success && ctx.Err() != nil

	// The prompt may have been answered before this attempt got here.
	var early *lateAnswer
	if res.Success && res.FinalStatus == domain.StatusWaiting && res.Wait != nil && res.Wait.PromptID != "" {
		e.promptMu.Lock()
		defer e.promptMu.Unlock()
		if a, ok := e.lateAnswers[res.Wait.PromptID]; ok {
			delete(e.lateAnswers, res.Wait.PromptID)
			early = &a
		}
	}

	outcome := "done"
	terminal := false
	updated, err := e.thoughts.Mutate(th.ID, func(cur domain.Thought) (domain.Thought, error) {
		if ruleID != "" {
			cur.Metadata.RuleID = ruleID
		}

		switch {
		case interrupted:
			cur.Status = domain.StatusPending
			outcome = "requeued"
			return cur, nil

		case res.Success:
			status := res.FinalStatus
			if status == "" {
				status = domain.StatusDone
			}
			cur.Status = status
			cur.Metadata.Error = ""
			cur.Metadata.Retries = 0
			if status == domain.StatusWaiting && early != nil {
				cur.Status = domain.StatusPending
				cur.Metadata.WaitingFor = nil
				outcome = "resumed"
			} else if status == domain.StatusWaiting {
				cur.Metadata.WaitingFor = res.Wait
				outcome = "waiting"
			} else {
				cur.Metadata.WaitingFor = nil
			}

		default:
			msg := res.ErrorMessage()
			if msg == "" {
				msg = ErrProcessing.Error()
			}
			cur.Metadata.Retries++
			cur.Metadata.Error = e.truncate(msg)
			cur.Metadata.WaitingFor = nil
			if cur.Metadata.Retries > e.cfg.MaxRetries {
				cur.Status = domain.StatusFailed
				terminal = true
				outcome = "failed"
			} else {
				cur.Status = domain.StatusPending
				outcome = "retry"
			}
		}

		cur.Belief = cur.Belief.Update(res.Success)
		return cur, nil
	})
	if errors.Is(err, store.ErrNotFound) {
		e.logger.Debug("thought removed during processing", zap.String("thought_id", th.ID))
		if early != nil {
			e.answerUnwaitedPrompt(res.Wait.PromptID, early.text)
		}
		return outcome
	}
	if err != nil {
		e.logger.Error("failed to finalize thought", zap.String("thought_id", th.ID), zap.Error(err))
		return outcome
	}

	if early != nil {
		e.thoughts.Add(domain.NewChildThought(updated, domain.ThoughtInput, term.NewAtom(early.text)))
		e.logger.Info("prompt answered before its asker suspended",
			zap.String("thought_id", th.ID),
			zap.String("prompt_id", res.Wait.PromptID))
		e.signal()
	}

	if terminal {
		e.logger.Warn("thought failed permanently",
			zap.String("thought_id", th.ID),
			zap.Int("retries", updated.Metadata.Retries),
			zap.String("error", updated.Metadata.Error))
		if updated.Type != domain.ThoughtLog {
			e.emitFailureLog(updated)
		}
	} else if outcome == "retry" {
		e.logger.Debug("thought attempt failed, will retry",
			zap.String("thought_id", th.ID),
			zap.Int("retries", updated.Metadata.Retries),
			zap.String("error", updated.Metadata.Error))
	}
	return outcome
}

func (e *Engine) emitFailureLog(failedTh domain.Thought) {
	content := term.NewStruct(TagFailure,
		term.NewAtom(failedTh.ID),
		failedTh.Content,
		term.NewAtom(failedTh.Metadata.Error),
	)
	logTh := domain.NewChildThought(failedTh, domain.ThoughtLog, content)
	logTh.SetTag(TagFailure, fmt.Sprintf("%s after %d attempts", ErrRetryExhausted, failedTh.Metadata.Retries))
	logTh.SetTag(TagFailedThought, failedTh.ID)
	e.thoughts.Add(logTh)
}

func (e *Engine) truncate(msg string) string {
	r := []rune(msg)
	if len(r) <= e.cfg.MaxErrorLength {
		return msg
	}
	return string(r[:e.cfg.MaxErrorLength])
}

// AddThought stores th as a new pending thought, filling in id, status,
// priority and root when missing. A thought with a known parent joins the
// parent's task.
func (e *Engine) AddThought(th domain.Thought) (domain.Thought, error) {
	if th.Content == nil {
		return domain.Thought{}, fmt.Errorf("%w: content is required", ErrInvalidThought)
	}
	if th.Type == "" {
		return domain.Thought{}, fmt.Errorf("%w: type is required", ErrInvalidThought)
	}
	if th.ID == "" {
		th.ID = uuid.NewString()
	}
	switch th.Status {
	case "":
		th.Status = domain.StatusPending
	case domain.StatusPending:
	default:
		// Only the scheduler moves a thought out of PENDING.
		return domain.Thought{}, fmt.Errorf("%w: new thoughts start PENDING, got %s", ErrInvalidThought, th.Status)
	}
	th.Metadata.WaitingFor = nil
	if th.Metadata.Priority == 0 {
		th.Metadata.Priority = 1
	}
	if th.Metadata.ParentID != "" {
		parent, ok := e.thoughts.Get(th.Metadata.ParentID)
		if !ok {
			return domain.Thought{}, fmt.Errorf("%w: parent %s: %w", ErrInvalidThought, th.Metadata.ParentID, store.ErrNotFound)
		}
		th.Metadata.RootID = parent.Root()
	} else {
		th.Metadata.RootID = th.ID
	}
	if th.IsRoot() && th.Metadata.TaskStatus == "" {
		th.Metadata.TaskStatus = domain.TaskRunning
	}

	stored := e.thoughts.Add(th)
	e.signal()
	return stored, nil
}

// HandlePromptResponse answers a pending USER_PROMPT. The answer becomes an
// INPUT child of the thought waiting on the prompt, which returns to
// PENDING. A prompt nobody waits on gets the INPUT child itself. It reports
// false when promptID does not name a pending prompt.
func (e *Engine) HandlePromptResponse(promptID, text string) bool {
	prompt, err := e.thoughts.FindByPrefix(promptID)
	if err != nil || prompt.Type != domain.ThoughtUserPrompt || prompt.Status != domain.StatusPending {
		return false
	}

	e.promptMu.Lock()
	defer e.promptMu.Unlock()

	_, err = e.thoughts.Mutate(prompt.ID, func(cur domain.Thought) (domain.Thought, error) {
		if cur.Status != domain.StatusPending {
			return cur, errNoChange
		}
		cur.Status = domain.StatusDone
		return cur, nil
	})
	if err != nil {
		return false
	}

	waiters := e.thoughts.Filter(func(th domain.Thought) bool {
		return th.Status == domain.StatusWaiting &&
			th.Metadata.WaitingFor != nil &&
			th.Metadata.WaitingFor.PromptID == prompt.ID
	})

	if len(waiters) == 0 {
		// The asker is still running and has not suspended yet. Its attempt
		// picks the answer up when it finishes.
		e.mu.Lock()
		_, asking := e.active[prompt.Metadata.ParentID]
		e.mu.Unlock()
		if asking && prompt.Metadata.ParentID != "" {
			e.lateAnswers[prompt.ID] = lateAnswer{askerID: prompt.Metadata.ParentID, text: text}
			return true
		}
		e.answerUnwaitedPrompt(prompt.ID, text)
		return true
	}

	for _, w := range waiters {
		e.thoughts.Add(domain.NewChildThought(w, domain.ThoughtInput, term.NewAtom(text)))
		_, err := e.thoughts.Mutate(w.ID, func(cur domain.Thought) (domain.Thought, error) {
			if cur.Status != domain.StatusWaiting {
				return cur, errNoChange
			}
			cur.Status = domain.StatusPending
			cur.Metadata.WaitingFor = nil
			cur.Belief = cur.Belief.Update(true)
			return cur, nil
		})
		if err != nil && !errors.Is(err, errNoChange) {
			e.logger.Warn("failed to resume waiting thought", zap.String("thought_id", w.ID), zap.Error(err))
		}
	}

	e.logger.Info("prompt answered", zap.String("prompt_id", prompt.ID), zap.Int("resumed", len(waiters)))
	e.signal()
	return true
}

type lateAnswer struct {
	askerID string
	text    string
}

// takeLateAnswers removes the answers held for askerID. Callers hold promptMu.
func (e *Engine) takeLateAnswers(askerID string) map[string]string {
	var out map[string]string
	for promptID, a := range e.lateAnswers {
		if a.askerID != askerID {
			continue
		}
		if out == nil {
			out = make(map[string]string)
		}
		out[promptID] = a.text
		delete(e.lateAnswers, promptID)
	}
	return out
}

// answerUnwaitedPrompt files text as an INPUT child of the prompt itself.
func (e *Engine) answerUnwaitedPrompt(promptID, text string) {
	prompt, ok := e.thoughts.Get(promptID)
	if !ok {
		e.logger.Debug("answered prompt was removed", zap.String("prompt_id", promptID))
		return
	}
	e.thoughts.Add(domain.NewChildThought(prompt, domain.ThoughtInput, term.NewAtom(text)))
	e.signal()
}

// DeleteThought removes the thought identified by id or a unique prefix of
// it. Its children are left in place.
func (e *Engine) DeleteThought(id string) (domain.Thought, error) {
	th, err := e.thoughts.FindByPrefix(id)
	if err != nil {
		return domain.Thought{}, err
	}
	e.thoughts.Delete(th.ID)
	return th, nil
}

// GetThought resolves id or a unique prefix of it.
func (e *Engine) GetThought(id string) (domain.Thought, error) {
	return e.thoughts.FindByPrefix(id)
}

// PauseTask withholds every thought of the task containing id from
// selection. Attempts already running are not interrupted.
func (e *Engine) PauseTask(id string) (domain.Thought, error) {
	return e.setTaskStatus(id, domain.TaskPaused)
}

func (e *Engine) ResumeTask(id string) (domain.Thought, error) {
	root, err := e.setTaskStatus(id, domain.TaskRunning)
	if err == nil {
		e.signal()
	}
	return root, err
}

func (e *Engine) setTaskStatus(id string, status domain.TaskStatus) (domain.Thought, error) {
	th, err := e.thoughts.FindByPrefix(id)
	if err != nil {
		return domain.Thought{}, err
	}
	return e.thoughts.Mutate(th.Root(), func(root domain.Thought) (domain.Thought, error) {
		root.Metadata.TaskStatus = status
		return root, nil
	})
}

// AddRule validates and stores r.
func (e *Engine) AddRule(r domain.Rule) (domain.Rule, error) {
	if r.Pattern == nil || r.Action == nil {
		return domain.Rule{}, fmt.Errorf("%w: pattern and action are required", ErrInvalidRule)
	}
	if _, ok := r.Action.(term.Struct); !ok {
		return domain.Rule{}, fmt.Errorf("%w: action must be a struct naming a tool, got %s", ErrInvalidRule, r.Action)
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Metadata.Source == "" {
		r.Metadata.Source = domain.RuleSourceAPI
	}

	stored := e.rules.Add(r)
	e.signal()
	return stored, nil
}

// DeleteRule removes the rule identified by id or a unique prefix of it.
func (e *Engine) DeleteRule(id string) error {
	r, err := e.rules.FindByPrefix(id)
	if err != nil {
		return err
	}
	e.rules.Delete(r.ID)
	return nil
}

// Explain lists every rule that would match the thought, best first.
func (e *Engine) Explain(id string) (domain.Thought, []Match, error) {
	th, err := e.thoughts.FindByPrefix(id)
	if err != nil {
		return domain.Thought{}, nil, err
	}
	return th, e.matcher.MatchAll(th, e.rules.List()), nil
}

func (e *Engine) Status() EngineStatus {
	e.mu.Lock()
	running := e.running
	active := len(e.active)
	e.mu.Unlock()

	st := EngineStatus{
		Running:     running,
		ActiveCount: active,
		Rules:       e.rules.Len(),
		Tools:       e.registry.Names(),
	}
	for _, th := range e.thoughts.List() {
		st.Thoughts++
		switch th.Status {
		case domain.StatusPending:
			st.PendingCount++
		case domain.StatusWaiting:
			st.WaitingCount++
		}
	}
	return st
}
