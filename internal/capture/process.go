package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultScannerBufSize  = 1024 * 1024 // 1 MB
	defaultGracefulTimeout = 2 * time.Second
	exitBufCap             = 4
)

// ErrNotRunning is returned when stopping a supervisor with no live process.
var ErrNotRunning = errors.New("capture process not running")

// Exit describes the end of one capture process.
type Exit struct {
	ID       string
	Code     int
	Err      error
	Expected bool // true when the exit followed Stop
	At       time.Time
}

// Crashed reports whether the process ended without being asked to.
func (e Exit) Crashed() bool {
	return !e.Expected
}

func (e Exit) String() string {
	if e.Err != nil {
		return fmt.Sprintf("capture process %s exited with code %d: %v", e.ID, e.Code, e.Err)
	}
	return fmt.Sprintf("capture process %s exited with code %d", e.ID, e.Code)
}

// SupervisorConfig tells the supervisor how to launch the capture child.
type SupervisorConfig struct {
	// Command is the argv of the child; Command[0] is the executable.
	Command []string
	// Env is appended to the parent environment.
	Env []string
	// GracefulTimeout is how long Stop waits after an interrupt before
	// killing the child.
	GracefulTimeout time.Duration
}

// Supervisor owns at most one capture child process, reads its record
// stream into a Queue and reports its exits.
type Supervisor struct {
	cfg    SupervisorConfig
	queue  *Queue
	logger zerolog.Logger
	exits  chan Exit

	mu   sync.Mutex
	proc *managedProcess
}

type managedProcess struct {
	id       string
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	stopping bool
	done     chan struct{}
}

// NewSupervisor creates a supervisor feeding queue.
func NewSupervisor(cfg SupervisorConfig, queue *Queue, logger zerolog.Logger) *Supervisor {
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaultGracefulTimeout
	}
	return &Supervisor{
		cfg:    cfg,
		queue:  queue,
		logger: logger,
		exits:  make(chan Exit, exitBufCap),
	}
}

// SelfCommand returns the argv that re-executes the running binary in
// capture mode.
func SelfCommand(flag string) ([]string, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}
	return []string{exe, flag}, nil
}

// Exits delivers one Exit per process that ends.
func (s *Supervisor) Exits() <-chan Exit {
	return s.exits
}

// Queue returns the queue the child's records are pushed to.
func (s *Supervisor) Queue() *Queue {
	return s.queue
}

// Running reports whether a child is currently alive.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proc != nil
}

// Start launches the child. It is a no-op if one is already running. A
// child still shutting down after Stop is waited for (and killed after the
// graceful timeout) before the new one is launched.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	if prev := s.proc; prev != nil {
		if !prev.stopping {
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
		if err := s.awaitExit(prev); err != nil {
			return err
		}
		s.mu.Lock()
	}
	defer s.mu.Unlock()

	if s.proc != nil {
		return nil
	}
	if len(s.cfg.Command) == 0 {
		return fmt.Errorf("capture command not configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, s.cfg.Command[0], s.cfg.Command[1:]...)
	cmd.Env = append(os.Environ(), s.cfg.Env...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start capture process: %w", err)
	}

	mp := &managedProcess{
		id:     uuid.New().String(),
		cmd:    cmd,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.proc = mp

	s.logger.Info().Str("process", mp.id).Int("pid", cmd.Process.Pid).Msg("capture process started")

	var readers sync.WaitGroup
	readers.Add(2)
	go func() {
		defer readers.Done()
		s.scanRecords(mp, stdoutPipe)
	}()
	go func() {
		defer readers.Done()
		s.scanStderr(mp, stderrPipe)
	}()
	go s.waitForExit(mp, &readers)

	return nil
}

// Stop interrupts the child and kills it if it has not exited within the
// graceful timeout. It does not wait for the exit.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	mp := s.proc
	if mp == nil {
		s.mu.Unlock()
		return ErrNotRunning
	}
	mp.stopping = true
	s.mu.Unlock()

	if err := mp.cmd.Process.Signal(os.Interrupt); err != nil {
		// Interrupts are not deliverable on every platform.
		mp.cancel()
		return nil
	}

	go func() {
		select {
		case <-mp.done:
		case <-time.After(s.cfg.GracefulTimeout):
			mp.cancel()
		}
	}()
	return nil
}

// awaitExit waits for a stopping child to be reaped.
func (s *Supervisor) awaitExit(mp *managedProcess) error {
	select {
	case <-mp.done:
		return nil
	case <-time.After(s.cfg.GracefulTimeout):
	}

	mp.cancel()
	select {
	case <-mp.done:
		return nil
	case <-time.After(s.cfg.GracefulTimeout):
		return fmt.Errorf("previous capture process %s did not exit", mp.id)
	}
}

// Shutdown stops the child and waits for it to exit or ctx to end.
func (s *Supervisor) Shutdown(ctx context.Context) {
	s.mu.Lock()
	mp := s.proc
	s.mu.Unlock()
	if mp == nil {
		return
	}
	_ = s.Stop()
	select {
	case <-mp.done:
	case <-ctx.Done():
		mp.cancel()
	}
}

func (s *Supervisor) scanRecords(mp *managedProcess, pipe io.Reader) {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, defaultScannerBufSize), defaultScannerBufSize)
	scanner.Split(skipLongLines(defaultScannerBufSize, func() {
		s.logger.Warn().Str("process", mp.id).Msg("dropping oversized capture line")
	}))

	for scanner.Scan() {
		event, err := ParseLine(scanner.Bytes(), time.Now().UTC())
		if err != nil {
			s.logger.Debug().Err(err).Str("process", mp.id).Msg("dropping capture line")
			continue
		}
		if s.queue.Push(event) {
			s.logger.Warn().Uint64("dropped", s.queue.Dropped()).Msg("capture queue full, oldest click dropped")
		}
	}

	if err := scanner.Err(); err != nil {
		s.logger.Warn().Err(err).Str("process", mp.id).Msg("capture stdout scanner error")
		// The child must never block on a full pipe.
		_, _ = io.Copy(io.Discard, pipe)
	}
}

// skipLongLines splits like bufio.ScanLines, but a line that does not fit
// in limit bytes is discarded up to its newline instead of ending the scan.
func skipLongLines(limit int, dropped func()) bufio.SplitFunc {
	discarding := false
	return func(data []byte, atEOF bool) (int, []byte, error) {
		nl := bytes.IndexByte(data, '\n')
		if discarding {
			if nl >= 0 {
				discarding = false
				return nl + 1, nil, nil
			}
			return len(data), nil, nil
		}
		if nl < 0 && len(data) >= limit {
			discarding = true
			if dropped != nil {
				dropped()
			}
			return len(data), nil, nil
		}
		return bufio.ScanLines(data, atEOF)
	}
}

func (s *Supervisor) scanStderr(mp *managedProcess, pipe io.Reader) {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, defaultScannerBufSize), defaultScannerBufSize)

	for scanner.Scan() {
		s.logger.Debug().Str("process", mp.id).Str("stream", "stderr").Msg(scanner.Text())
	}
}

func (s *Supervisor) waitForExit(mp *managedProcess, readers *sync.WaitGroup) {
	// Pipes must be fully read before Wait closes them.
	readers.Wait()
	err := mp.cmd.Wait()
	mp.cancel()

	exitCode := 0
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		exitCode = exitErr.ExitCode()
		err = nil
	}

	s.mu.Lock()
	expected := mp.stopping
	if s.proc == mp {
		s.proc = nil
	}
	s.mu.Unlock()
	close(mp.done)

	exit := Exit{
		ID:       mp.id,
		Code:     exitCode,
		Err:      err,
		Expected: expected,
		At:       time.Now().UTC(),
	}
	if exit.Crashed() {
		s.logger.Error().Str("process", mp.id).Int("code", exitCode).Msg("capture process crashed")
	} else {
		s.logger.Info().Str("process", mp.id).Int("code", exitCode).Msg("capture process exited")
	}

	select {
	case s.exits <- exit:
	default:
		s.logger.Warn().Str("process", mp.id).Msg("exit notification dropped, receiver not keeping up")
	}
}
