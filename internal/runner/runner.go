// Package runner is the governance layer around agent execution: it
// validates task submissions, enforces the do-not-contact hard block and the
// single execution slot, manages the confirm/cancel lifecycle, and runs the
// control loop as a background unit of work.
package runner

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"lucid/internal/agent"
	"lucid/internal/agent/tasks"
	"lucid/internal/audit"
	"lucid/internal/errors"
	"lucid/internal/llm"
	"lucid/internal/logging"
	"lucid/internal/metrics"
	"lucid/internal/patients"
	"lucid/internal/screen"
	"lucid/internal/session"
)

// Deps wires the runner's collaborators. NewClient and NewController are
// invoked once per execution so each session gets fresh connections.
type Deps struct {
	Store         session.Store
	Patients      patients.Directory
	Frames        *audit.FrameLogger
	NewClient     func() (llm.Client, error)
	NewController func() (screen.Controller, error)
	Loop          agent.LoopConfig
	Metrics       *metrics.Metrics
	Logger        logging.Logger
}

// Runner accepts, gates, and executes agent tasks. One instance per process.
type Runner struct {
	deps   Deps
	logger logging.Logger
	slot   Slot

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	wg sync.WaitGroup
}

// New creates a runner.
func New(deps Deps) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewComponentLogger("TaskRunner")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewUnregistered()
	}
	return &Runner{
		deps:    deps,
		logger:  logger,
		cancels: map[string]context.CancelFunc{},
	}
}

// RunningSessionID returns the session currently holding the execution slot,
// or "" when idle.
func (r *Runner) RunningSessionID() string {
	return r.slot.Holder()
}

// Wait blocks until all background execution units have finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Submit validates and gates a task request. Write kinds submitted without
// confirmation are persisted in awaiting_confirmation and take no slot.
// Every abort point before slot acquisition leaves no runnable session
// behind.
func (r *Runner) Submit(kind string, params map[string]any, confirmed bool) (*session.Session, error) {
	if params == nil {
		params = map[string]any{}
	}

	def, ok := tasks.Lookup(kind)
	if !ok {
		return nil, r.deny(errors.Validationf("unknown task kind: %s. Valid: %s", kind, strings.Join(tasks.Kinds(), ", ")))
	}

	if err := def.Validate(params); err != nil {
		return nil, r.deny(errors.Validationf("invalid parameters: %v", err))
	}

	if err := r.checkDNC(params, true); err != nil {
		return nil, r.deny(err)
	}

	if def.RequiresConfirmation() && !confirmed {
		sess := session.New(kind, params, session.StatusAwaitingConfirmation)
		if err := r.deps.Store.Create(sess); err != nil {
			return nil, err
		}
		r.logger.Info("Task %s (session %s) awaiting confirmation", kind, sess.ID)
		return sess, nil
	}

	sess := session.New(kind, params, session.StatusRunning)
	if err := r.slot.TryAcquire(sess.ID); err != nil {
		return nil, r.deny(err)
	}
	if err := r.deps.Store.Create(sess); err != nil {
		r.slot.Release(sess.ID)
		return nil, err
	}

	r.deps.Metrics.SessionsSubmitted.WithLabelValues(kind).Inc()
	r.start(sess, def)
	r.logger.Info("Task %s started (session %s)", kind, sess.ID)
	return sess, nil
}

// Confirm starts execution of a session awaiting confirmation. Validation
// and the DNC gate already ran at submit time; the execution unit re-checks
// DNC itself before any mutating work.
func (r *Runner) Confirm(sessionID string) (*session.Session, error) {
	sess, err := r.deps.Store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != session.StatusAwaitingConfirmation {
		return nil, errors.Statef("session %s is not awaiting confirmation (status: %s)", sessionID, sess.Status)
	}
	def, ok := tasks.Lookup(sess.Kind)
	if !ok {
		return nil, errors.Validationf("unknown task kind: %s", sess.Kind)
	}

	if err := r.slot.TryAcquire(sess.ID); err != nil {
		return nil, r.deny(err)
	}

	sess.Status = session.StatusRunning
	if err := r.deps.Store.Save(sess); err != nil {
		r.slot.Release(sess.ID)
		return nil, err
	}

	r.deps.Metrics.SessionsSubmitted.WithLabelValues(sess.Kind).Inc()
	r.start(sess, def)
	r.logger.Info("Task %s confirmed and started (session %s)", sess.Kind, sess.ID)
	return sess, nil
}

// Cancel marks a non-terminal session cancelled and releases its slot.
// Cancellation is cooperative: an in-flight loop observes it at the next
// iteration boundary and never resumes after that.
func (r *Runner) Cancel(sessionID string) (*session.Session, error) {
	sess, err := r.deps.Store.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status.Terminal() {
		return nil, errors.Statef("session %s already completed (status: %s)", sessionID, sess.Status)
	}

	sess.Status = session.StatusCancelled
	now := time.Now().UTC()
	sess.EndedAt = &now
	if err := r.deps.Store.Save(sess); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if cancel, ok := r.cancels[sessionID]; ok {
		cancel()
	}
	r.mu.Unlock()
	r.slot.Release(sessionID)

	r.deps.Metrics.SessionsCompleted.WithLabelValues(sess.Kind, string(session.StatusCancelled)).Inc()
	r.logger.Info("Task cancelled (session %s)", sessionID)
	return sess, nil
}

// deny records a rejected submission and passes the error through.
func (r *Runner) deny(err error) error {
	r.deps.Metrics.SubmissionsDenied.WithLabelValues(errors.CategoryOf(err).String()).Inc()
	return err
}

// checkDNC enforces the do-not-contact hard block when the parameters
// reference a patient. The block holds regardless of the confirmed flag and
// task kind. When enrich is set, the patient's name is added to the
// parameters for the prompt.
func (r *Runner) checkDNC(params map[string]any, enrich bool) error {
	accountID, _ := params["patient_account_id"].(string)
	if accountID == "" || r.deps.Patients == nil {
		return nil
	}

	patient, err := r.deps.Patients.Lookup(accountID)
	if err != nil {
		// An unknown account is not a policy violation; the agent will
		// report it from the screen if the record does not exist.
		if errors.Is(err, errors.CategoryNotFound) {
			return nil
		}
		return err
	}
	if patient.IsDNC {
		return errors.Policyf("BLOCKED: patient %s has DNC flag. Cannot perform any agent operations on DNC patients.", accountID)
	}
	if enrich {
		if name := patient.FullName(); name != "" {
			params["patient_name"] = name
		}
	}
	return nil
}

// start launches the background execution unit for a session that already
// holds the slot.
func (r *Runner) start(sess *session.Session, def tasks.Definition) {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancels[sess.ID] = cancel
	r.mu.Unlock()
	r.deps.Metrics.SessionRunning.Set(1)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			r.mu.Lock()
			delete(r.cancels, sess.ID)
			r.mu.Unlock()
			cancel()
			r.slot.Release(sess.ID)
			r.deps.Metrics.SessionRunning.Set(0)
		}()
		r.execute(ctx, sess.ID, def)
	}()
}

// execute runs the control loop for one session and persists the outcome.
// The slot is released and the controller closed on every exit path.
func (r *Runner) execute(ctx context.Context, sessionID string, def tasks.Definition) {
	sess, err := r.deps.Store.Get(sessionID)
	if err != nil || sess.Status != session.StatusRunning {
		return
	}

	// Clinic data may have changed between submission and confirmation, so
	// write operations re-check the DNC flag before any mutating action.
	if def.RequiresConfirmation() {
		if err := r.checkDNC(sess.Params, false); err != nil {
			r.finishError(sessionID, err)
			return
		}
	}

	controller, err := r.deps.NewController()
	if err != nil {
		r.finishError(sessionID, err)
		return
	}
	if err := controller.Connect(); err != nil {
		r.finishError(sessionID, err)
		return
	}
	defer func() {
		if err := controller.Disconnect(); err != nil {
			r.logger.Warn("Disconnect failed (session %s): %v", sessionID, err)
		}
	}()

	client, err := r.deps.NewClient()
	if err != nil {
		r.finishError(sessionID, err)
		return
	}

	loop := agent.NewLoop(client, controller, r.deps.Frames, sessionID, r.deps.Loop)
	outcome := loop.Run(ctx, def.SystemPrompt(), def.BuildPrompt(sess.Params))
	parsed := def.ParseResult(outcome)

	status := session.StatusFailed
	switch outcome.Status {
	case agent.OutcomeSuccess:
		status = session.StatusSuccess
	case agent.OutcomeMaxIterations:
		status = session.StatusPartial
	case agent.OutcomeTimeout:
		status = session.StatusTimeout
	}

	r.finish(sessionID, func(sess *session.Session) {
		sess.Status = status
		sess.IterationsUsed = outcome.Iterations
		sess.FrameCount = r.deps.Frames.Count(sessionID)
		sess.ErrorLog = outcome.Err
		if summary, err := json.Marshal(parsed); err == nil {
			sess.ResultSummary = string(summary)
		}
		if status == session.StatusSuccess {
			sess.RecordsAffected = recordsAffected(parsed)
		}
	})

	r.deps.Metrics.SessionsCompleted.WithLabelValues(sess.Kind, string(status)).Inc()
	r.deps.Metrics.LoopIterations.Observe(float64(outcome.Iterations))
	r.deps.Metrics.FramesCaptured.Add(float64(outcome.Steps))
	r.logger.Info("Task completed (session %s): status=%s iterations=%d steps=%d",
		sessionID, status, outcome.Iterations, outcome.Steps)
}

// finishError records a loop-setup or policy failure as a failed session.
func (r *Runner) finishError(sessionID string, cause error) {
	r.logger.Error("Task execution failed (session %s): %v", sessionID, cause)
	r.finish(sessionID, func(sess *session.Session) {
		sess.Status = session.StatusFailed
		sess.ErrorLog = cause.Error()
	})
	sess, err := r.deps.Store.Get(sessionID)
	if err == nil {
		r.deps.Metrics.SessionsCompleted.WithLabelValues(sess.Kind, string(session.StatusFailed)).Inc()
	}
}

// finish applies mutate to the session and stamps the end time. A session
// cancelled while the loop was in flight stays cancelled: the store rejects
// writes to terminal sessions and the rejection is deliberately swallowed.
func (r *Runner) finish(sessionID string, mutate func(*session.Session)) {
	sess, err := r.deps.Store.Get(sessionID)
	if err != nil {
		r.logger.Error("Cannot load session %s for final write: %v", sessionID, err)
		return
	}
	if sess.Status.Terminal() {
		return
	}
	mutate(sess)
	now := time.Now().UTC()
	sess.EndedAt = &now
	if err := r.deps.Store.Save(sess); err != nil {
		if errors.Is(err, errors.CategoryState) {
			return
		}
		r.logger.Error("Final session write failed (session %s): %v", sessionID, err)
	}
}

func recordsAffected(parsed map[string]any) int {
	if n, ok := parsed["records_synced"].(int); ok && n > 0 {
		return n
	}
	if booked, ok := parsed["booked"].(bool); ok && booked {
		return 1
	}
	if updated, ok := parsed["updated"].(bool); ok && updated {
		return 1
	}
	return 0
}
