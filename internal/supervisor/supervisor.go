// Package supervisor owns the backend process lifecycle: port negotiation,
// spawning with log capture, the readiness gate, the bounded restart
// policy, and coordinated shutdown. All of that state lives on a single
// Supervisor constructed once per application session.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"mnesis-launcher/internal/config"
	"mnesis-launcher/internal/logs"
	"mnesis-launcher/internal/metrics"
	"mnesis-launcher/internal/ports"
	"mnesis-launcher/internal/readiness"
	"mnesis-launcher/internal/status"
	"mnesis-launcher/internal/storage"
)

var (
	// ErrBackendMissing: the bundled backend executable is absent. Fatal
	// and never retried; a restart cannot conjure the file.
	ErrBackendMissing = errors.New("backend executable not found")
	// ErrReadinessTimeout: the model-ready signal never arrived within the
	// configured wall-clock budget. Fatal; the UI must not attach to a
	// half-initialized backend.
	ErrReadinessTimeout = errors.New("backend did not become ready in time")
	// ErrRepeatedCrash: the restart budget is spent. Fatal.
	ErrRepeatedCrash = errors.New("backend crashed repeatedly")
)

const terminateGrace = 5 * time.Second

// Gate abstracts the readiness gate so tests can fake it.
type Gate interface {
	Wait(ctx context.Context, primaryPort uint16) bool
}

// Options wires the supervisor's collaborators. Zero fields get real
// implementations; tests inject fakes.
type Options struct {
	Config      *config.Config
	Logger      *zap.Logger
	Broadcaster *status.Broadcaster
	// Store is optional; history persistence never blocks supervision.
	Store     *storage.BoltDB
	Allocator *ports.Allocator
	Gate      Gate
	Start     StartFunc
	// OpenLog opens the child's append-mode log sink.
	OpenLog func() (*os.File, error)
	// OnFatal surfaces a fatal condition to the user exactly once, before
	// Run returns the error.
	OnFatal func(event status.EventType, message string)
}

// Supervisor drives one session of the backend process. Everything below
// the events channel is owned by the Run goroutine exclusively.
type Supervisor struct {
	cfg         *config.Config
	logger      *zap.Logger
	broadcaster *status.Broadcaster
	store       *storage.BoltDB
	allocator   *ports.Allocator
	gate        Gate
	start       StartFunc
	openLog     func() (*os.File, error)
	onFatal     func(event status.EventType, message string)

	events chan event

	pair         ports.Pair
	portsSet     bool
	gen          uint64
	proc         Process
	cancelSpawn  context.CancelFunc
	spawnedAt    time.Time
	budget       *RestartBudget
	session      *storage.SessionRecord
	shuttingDown bool
	logPath      string
}

// New constructs a supervisor. Call Run exactly once.
func New(opts Options) *Supervisor {
	s := &Supervisor{
		cfg:         opts.Config,
		logger:      opts.Logger,
		broadcaster: opts.Broadcaster,
		store:       opts.Store,
		allocator:   opts.Allocator,
		gate:        opts.Gate,
		start:       opts.Start,
		openLog:     opts.OpenLog,
		onFatal:     opts.OnFatal,
		events:      make(chan event, 16),
		budget:      NewRestartBudget(opts.Config.Restart.MaxAttempts, opts.Config.Restart.Delay),
	}
	if s.allocator == nil {
		s.allocator = ports.NewAllocator(opts.Logger)
	}
	if s.gate == nil {
		s.gate = readiness.NewGate(opts.Config.Readiness.PollInterval, opts.Config.Readiness.Timeout, opts.Logger)
	}
	if s.start == nil {
		s.start = StartBackend
	}
	if s.openLog == nil {
		s.openLog = logs.OpenBackendLog
	}
	if path, err := logs.BackendLogPath(); err == nil {
		s.logPath = path
	}
	return s
}

// Run allocates ports, spawns the backend, and supervises it until ctx is
// cancelled (coordinated shutdown, returns nil), the backend exits cleanly
// on its own (returns nil), or a fatal condition is raised (returns the
// error after surfacing it once).
func (s *Supervisor) Run(ctx context.Context) error {
	pair, err := s.allocator.Allocate(s.cfg.PreferredPrimaryPort, s.cfg.PreferredControlPort)
	if err != nil {
		return s.fatal(status.EventPortAllocationFailed,
			fmt.Errorf("port allocation failed: %w", err))
	}
	s.pair = pair

	if err := s.spawn(ctx); err != nil {
		return s.fatal(status.EventBackendMissing, err)
	}

	for {
		select {
		case <-ctx.Done():
			s.onQuitRequested()
			return nil
		case ev := <-s.events:
			done, err := s.handleEvent(ctx, ev)
			if done {
				return err
			}
		}
	}
}

// onQuitRequested is the shutdown coordinator: restarts are disabled
// before the child is signalled, so a shutdown-induced exit event can
// never schedule a respawn.
func (s *Supervisor) onQuitRequested() {
	s.logger.Info("Quit requested, disabling restarts and terminating backend")
	s.shuttingDown = true
	s.budget.Exhaust()

	if s.cancelSpawn != nil {
		s.cancelSpawn()
	}
	if s.proc != nil {
		s.proc.Terminate(terminateGrace)
		s.proc = nil
	}
	s.finishSession("clean", "")
}

// handleEvent processes one loop event. It reports whether Run should
// return, and with which error.
func (s *Supervisor) handleEvent(ctx context.Context, ev event) (bool, error) {
	if ev.gen != s.gen {
		// Superseded handle; its observers were replaced by the restart.
		s.logger.Debug("Ignoring event from superseded process handle",
			zap.Uint64("event_gen", ev.gen),
			zap.Uint64("current_gen", s.gen))
		return false, nil
	}

	switch ev.kind {
	case evProcessExit:
		return s.handleExit(ev.exit)

	case evSpawnFailed:
		s.logger.Error("Backend spawn failed", zap.Error(ev.spawnErr))
		return s.handleCrash(ExitStatus{Code: -1, Err: ev.spawnErr})

	case evRestartTimer:
		if s.shuttingDown {
			return false, nil
		}
		s.logger.Info("Restart delay elapsed, respawning backend",
			zap.Uint("attempt", s.budget.Attempts()))
		if err := s.spawn(ctx); err != nil {
			return true, s.fatal(status.EventBackendMissing, err)
		}
		return false, nil

	case evReadinessResult:
		return s.handleReadiness(ev)
	}
	return false, nil
}

func (s *Supervisor) handleExit(st ExitStatus) (bool, error) {
	s.proc = nil
	if s.cancelSpawn != nil {
		s.cancelSpawn()
	}

	if s.shuttingDown {
		return false, nil
	}

	if st.Clean() {
		// The backend chose to exit; supervision for this session is over.
		s.logger.Info("Backend exited cleanly, ending session")
		s.finishSession("clean", "")
		return true, nil
	}

	s.logger.Warn("Backend exited abnormally",
		zap.Int("code", st.Code),
		zap.String("signal", st.Signal))
	return s.handleCrash(st)
}

// handleCrash runs the unified recovery path for abnormal exits and spawn
// failures: consume the budget, record the crash, and either schedule one
// restart after the flat delay or escalate to the fatal repeated-crash
// condition.
func (s *Supervisor) handleCrash(st ExitStatus) (bool, error) {
	metrics.IncAbnormalExit()
	allowed := s.budget.Consume()
	s.recordCrash(st, allowed)

	if !allowed {
		return true, s.fatal(status.EventBudgetExhausted,
			fmt.Errorf("%w: %d consecutive failures, see %s", ErrRepeatedCrash, s.budget.Attempts(), s.logPath))
	}

	metrics.IncRestart()
	s.applyStatus(status.EventAbnormalExit)
	s.logger.Info("Scheduling backend restart",
		zap.Uint("attempt", s.budget.Attempts()),
		zap.Duration("delay", s.budget.Delay()))

	gen := s.gen
	time.AfterFunc(s.budget.Delay(), func() {
		s.events <- event{kind: evRestartTimer, gen: gen}
	})
	return false, nil
}

func (s *Supervisor) handleReadiness(ev event) (bool, error) {
	if !ev.ready {
		return true, s.fatal(status.EventReadinessTimeout,
			fmt.Errorf("%w after %s, see %s", ErrReadinessTimeout, s.cfg.Readiness.Timeout, s.logPath))
	}

	s.budget.Reset()
	metrics.ObserveReadiness(ev.elapsed.Seconds())
	s.applyStatus(status.EventReadinessPassed)
	s.logger.Info("Backend passed readiness gate",
		zap.Duration("elapsed", ev.elapsed),
		zap.Uint16("primary_port", s.pair.Primary))
	return false, nil
}

// spawn starts one backend attempt. Only a missing executable is returned
// as an error; any other failure goes through the crash path as an event.
func (s *Supervisor) spawn(ctx context.Context) error {
	exe := s.cfg.BackendExecutable()
	if _, err := os.Stat(exe); err != nil {
		return fmt.Errorf("%w: %s", ErrBackendMissing, exe)
	}

	s.applyStatus(status.EventSpawnStarted)
	metrics.IncSpawn()

	s.gen++
	gen := s.gen

	logFile, err := s.openLog()
	if err != nil {
		s.events <- event{kind: evSpawnFailed, gen: gen, spawnErr: err}
		return nil
	}

	spawnCtx, cancel := context.WithCancel(ctx)
	s.cancelSpawn = cancel

	spec := SpawnSpec{
		Executable: exe,
		WorkDir:    s.cfg.ResourcesDir,
		Env: []string{
			fmt.Sprintf("%s=%d", EnvPrimaryPort, s.pair.Primary),
			fmt.Sprintf("%s=%d", EnvControlPort, s.pair.Control),
		},
		Output: logFile,
	}

	proc, err := s.start(spawnCtx, spec, s.logger)
	if err != nil {
		_ = logFile.Close()
		cancel()
		s.events <- event{kind: evSpawnFailed, gen: gen, spawnErr: err}
		return nil
	}

	s.proc = proc
	s.spawnedAt = time.Now()

	if !s.portsSet {
		// Ports become visible to the UI only after the first successful
		// spawn and are constant for the rest of the session.
		s.portsSet = true
		s.broadcaster.SetPorts(s.pair)
		s.startSession()
	}

	go func() {
		st := <-proc.Done()
		_ = logFile.Close()
		s.events <- event{kind: evProcessExit, gen: gen, exit: st}
	}()

	go func() {
		started := time.Now()
		ok := s.gate.Wait(spawnCtx, s.pair.Primary)
		if spawnCtx.Err() != nil {
			// The process died or shutdown began; the exit path decides
			// what happens next, not a half-finished gate.
			return
		}
		s.events <- event{kind: evReadinessResult, gen: gen, ready: ok, elapsed: time.Since(started)}
	}()

	return nil
}

// applyStatus folds an event into the broadcaster and mirrors the derived
// status into the metrics gauge.
func (s *Supervisor) applyStatus(event status.EventType) {
	s.broadcaster.Apply(event)
	metrics.SetStatus(string(s.broadcaster.Current().Status))
}

// fatal surfaces a terminal condition exactly once and returns the error
// Run hands back to the caller. A still-running child (readiness timeout)
// is terminated first.
func (s *Supervisor) fatal(event status.EventType, err error) error {
	if s.cancelSpawn != nil {
		s.cancelSpawn()
	}
	if s.proc != nil {
		s.proc.Terminate(terminateGrace)
		s.proc = nil
	}
	s.applyStatus(event)
	s.logger.Error("Fatal backend condition", zap.String("event", string(event)), zap.Error(err))
	if s.onFatal != nil {
		s.onFatal(event, err.Error())
	}
	s.finishSession("fatal", err.Error())
	return err
}

func (s *Supervisor) startSession() {
	s.session = &storage.SessionRecord{
		ID:          uuid.NewString(),
		StartedAt:   time.Now().UTC(),
		PrimaryPort: s.pair.Primary,
		ControlPort: s.pair.Control,
	}
	if s.store == nil {
		return
	}
	if err := s.store.SaveSession(s.session); err != nil {
		s.logger.Warn("Failed to persist session record", zap.Error(err))
	}
}

func (s *Supervisor) finishSession(outcome, reason string) {
	if s.session == nil || s.session.Outcome != "" {
		return
	}
	s.session.EndedAt = time.Now().UTC()
	s.session.Outcome = outcome
	s.session.FatalReason = reason
	if s.store == nil {
		return
	}
	if err := s.store.SaveSession(s.session); err != nil {
		s.logger.Warn("Failed to persist session outcome", zap.Error(err))
	}
}

func (s *Supervisor) recordCrash(st ExitStatus, restarted bool) {
	if s.store == nil || s.session == nil {
		return
	}
	rec := &storage.CrashRecord{
		SessionID: s.session.ID,
		At:        time.Now().UTC(),
		ExitCode:  st.Code,
		Signal:    st.Signal,
		Attempt:   s.budget.Attempts(),
		Restarted: restarted,
	}
	if err := s.store.RecordCrash(rec); err != nil {
		s.logger.Warn("Failed to persist crash record", zap.Error(err))
	}
}
