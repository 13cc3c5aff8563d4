// Package agentproc supervises the autonomous agent subprocess. Commands are
// written to its stdin as JSON lines and every stdout line is parsed as an
// event and fanned out to subscribers.
package agentproc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"commuter/internal/protocol"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultScannerBufSize   = 1024 * 1024 // 1 MB
	defaultSubscriberBufCap = 100
	defaultGracefulTimeout  = 5 * time.Second
	defaultRestartDelay     = 3 * time.Second
)

// ErrNotRunning is returned by Send while no process is attached.
var ErrNotRunning = errors.New("agent process not running")

// Options configures a Process.
type Options struct {
	Path            string
	Args            []string
	WorkDir         string
	Env             []string
	RestartDelay    time.Duration
	GracefulTimeout time.Duration
	// OnRestart is called before every respawn.
	OnRestart func()
	Logger    *zap.Logger
}

// ParseCommand splits a command line on whitespace.
func ParseCommand(line string) (string, []string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}

// Process supervises one agent subprocess and restarts it when it exits.
type Process struct {
	opts   Options
	path   string
	logger *zap.Logger

	mu      sync.RWMutex
	status  Status
	current *run

	subMu       sync.RWMutex
	subscribers map[string]chan protocol.Event

	shutdown     chan struct{}
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

type run struct {
	cmd    *exec.Cmd
	cancel context.CancelFunc
	stdin  *stdinWriter
	exited chan struct{}
}

// stdinWriter wraps the stdin pipe with mutex protection.
type stdinWriter struct {
	mu     sync.Mutex
	writer io.WriteCloser
	closed bool
}

func (sw *stdinWriter) Write(data []byte) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return fmt.Errorf("stdin pipe closed")
	}
	_, err := sw.writer.Write(data)
	return err
}

func (sw *stdinWriter) Close() {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if !sw.closed {
		sw.writer.Close()
		sw.closed = true
	}
}

// New resolves the agent binary. The process is not started.
func New(opts Options) (*Process, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("agent command is empty")
	}
	path, err := exec.LookPath(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("agent command not found: %w", err)
	}
	if opts.WorkDir != "" {
		info, err := os.Stat(opts.WorkDir)
		if err != nil {
			return nil, fmt.Errorf("working directory does not exist: %s", opts.WorkDir)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("path is not a directory: %s", opts.WorkDir)
		}
	}
	if opts.RestartDelay <= 0 {
		opts.RestartDelay = defaultRestartDelay
	}
	if opts.GracefulTimeout <= 0 {
		opts.GracefulTimeout = defaultGracefulTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Process{
		opts:        opts,
		path:        path,
		logger:      logger.Named("agent"),
		status:      Status{ID: uuid.New().String(), State: StateStopped},
		subscribers: make(map[string]chan protocol.Event),
		shutdown:    make(chan struct{}),
	}, nil
}

// Start spawns the process and begins supervising it.
func (p *Process) Start() error {
	select {
	case <-p.shutdown:
		return fmt.Errorf("agent process shut down")
	default:
	}

	r, err := p.spawn()
	if err != nil {
		return err
	}
	p.wg.Add(1)
	go p.supervise(r)
	return nil
}

// Status returns a snapshot of the process state.
func (p *Process) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status
}

// Running reports whether a process is attached.
func (p *Process) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current != nil
}

// Send writes a command to the agent's stdin as one JSON line.
func (p *Process) Send(cmd protocol.Command) error {
	data, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}
	p.mu.RLock()
	r := p.current
	p.mu.RUnlock()
	if r == nil {
		return ErrNotRunning
	}
	return r.stdin.Write(append(data, '\n'))
}

// Subscribe returns a channel of the agent's events and its subscription id.
func (p *Process) Subscribe() (string, <-chan protocol.Event) {
	id := uuid.New().String()
	ch := make(chan protocol.Event, defaultSubscriberBufCap)

	p.subMu.Lock()
	p.subscribers[id] = ch
	p.subMu.Unlock()
	return id, ch
}

// Unsubscribe removes and closes a subscription.
func (p *Process) Unsubscribe(id string) {
	p.subMu.Lock()
	if ch, ok := p.subscribers[id]; ok {
		close(ch)
		delete(p.subscribers, id)
	}
	p.subMu.Unlock()
}

// Shutdown stops supervision and terminates the process: interrupt first,
// then kill after the graceful timeout or when ctx is done.
func (p *Process) Shutdown(ctx context.Context) {
	p.shutdownOnce.Do(func() { close(p.shutdown) })

	p.mu.RLock()
	r := p.current
	p.mu.RUnlock()
	if r != nil {
		p.kill(ctx, r)
	}
	p.wg.Wait()

	p.mu.Lock()
	p.status.State = StateTerminated
	p.mu.Unlock()

	p.subMu.Lock()
	for id, ch := range p.subscribers {
		close(ch)
		delete(p.subscribers, id)
	}
	p.subMu.Unlock()
}

func (p *Process) kill(ctx context.Context, r *run) {
	if r.cmd.Process == nil {
		r.cancel()
		return
	}
	if err := r.cmd.Process.Signal(os.Interrupt); err != nil {
		r.cancel()
		return
	}

	timer := time.NewTimer(p.opts.GracefulTimeout)
	defer timer.Stop()
	select {
	case <-r.exited:
	case <-timer.C:
		p.logger.Warn("agent did not exit after interrupt, killing")
		r.cancel()
	case <-ctx.Done():
		r.cancel()
	}
}

func (p *Process) spawn() (*run, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, p.path, p.opts.Args...)
	cmd.Dir = p.opts.WorkDir
	if len(p.opts.Env) > 0 {
		cmd.Env = append(os.Environ(), p.opts.Env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start agent: %w", err)
	}

	r := &run{
		cmd:    cmd,
		cancel: cancel,
		stdin:  &stdinWriter{writer: stdin},
		exited: make(chan struct{}),
	}

	p.mu.Lock()
	p.current = r
	p.status.State = StateRunning
	p.status.PID = cmd.Process.Pid
	p.status.StartedAt = time.Now().UTC()
	select {
	case <-p.shutdown:
		// Shutdown raced with a restart.
		cancel()
	default:
	}
	p.mu.Unlock()

	p.logger.Info("agent started", zap.String("path", p.path), zap.Int("pid", cmd.Process.Pid))

	var scanners sync.WaitGroup
	scanners.Add(2)
	go func() {
		defer scanners.Done()
		p.scanEvents(stdout)
	}()
	go func() {
		defer scanners.Done()
		p.scanStderr(stderr)
	}()
	go func() {
		scanners.Wait()
		p.waitForExit(r)
	}()

	return r, nil
}

// scanEvents parses stdout lines and distributes them as events.
func (p *Process) scanEvents(pipe io.Reader) {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, defaultScannerBufSize), defaultScannerBufSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p.fanOut(protocol.ParseEvent([]byte(line)))
	}
	if err := scanner.Err(); err != nil {
		p.logger.Warn("stdout scanner error", zap.Error(err))
	}
}

func (p *Process) scanStderr(pipe io.Reader) {
	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, defaultScannerBufSize), defaultScannerBufSize)
	for scanner.Scan() {
		p.logger.Info("agent stderr", zap.String("line", scanner.Text()))
	}
}

// fanOut sends an event to all subscribers.
func (p *Process) fanOut(ev protocol.Event) {
	p.subMu.RLock()
	defer p.subMu.RUnlock()

	for _, ch := range p.subscribers {
		select {
		case ch <- ev:
		default:
			// Subscriber channel full, drop the event.
		}
	}
}

// waitForExit reaps the process and detaches it.
func (p *Process) waitForExit(r *run) {
	err := r.cmd.Wait()

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
		}
	}

	r.stdin.Close()
	r.cancel()

	p.mu.Lock()
	if p.current == r {
		p.current = nil
	}
	p.status.PID = 0
	p.status.LastExit = exitCode
	p.status.State = StateStopped
	p.mu.Unlock()

	p.logger.Info("agent exited", zap.Int("exit_code", exitCode))
	close(r.exited)
}

// supervise waits for each run to exit and respawns after the restart delay.
func (p *Process) supervise(r *run) {
	defer p.wg.Done()

	for {
		<-r.exited

		select {
		case <-p.shutdown:
			return
		default:
		}

		code := p.Status().LastExit
		p.fanOut(protocol.NewErrorEvent("Agent process exited (code %d), restarting in %s", code, p.opts.RestartDelay))

		next, ok := p.respawn()
		if !ok {
			return
		}
		r = next
	}
}

// respawn retries spawn until it succeeds or the process is shut down.
func (p *Process) respawn() (*run, bool) {
	p.mu.Lock()
	p.status.State = StateRestarting
	p.mu.Unlock()

	timer := time.NewTimer(p.opts.RestartDelay)
	defer timer.Stop()
	for {
		select {
		case <-p.shutdown:
			return nil, false
		case <-timer.C:
		}

		if p.opts.OnRestart != nil {
			p.opts.OnRestart()
		}
		r, err := p.spawn()
		if err == nil {
			p.mu.Lock()
			p.status.Restarts++
			p.mu.Unlock()
			return r, true
		}
		p.logger.Error("restart agent", zap.Error(err))
		p.fanOut(protocol.NewErrorEvent("Agent restart failed: %v", err))
		timer.Reset(p.opts.RestartDelay)
	}
}
