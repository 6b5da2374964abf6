package runner

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/speedguard/sgvpn/internal/model"
	"github.com/speedguard/sgvpn/internal/workers"
)

// ErrNoEngine means the engine binary could not be found.
var ErrNoEngine = errors.New("runner: engine not found")

// TunFd is the descriptor number of the interface in the engine process.
const TunFd = 3

// DefaultGracePeriod is how long the engine has to exit after an interrupt.
const DefaultGracePeriod = 5 * time.Second

// ExecRunner runs the tunnel engine as a child process. The engine finds
// the interface at [TunFd] and reads the raw configuration from stdin.
type ExecRunner struct {
	// Path is the engine binary, looked up in PATH when it has no slash.
	Path string

	// Args are passed to the engine.
	Args []string

	// GracePeriod defaults to [DefaultGracePeriod].
	GracePeriod time.Duration

	// OnExit may be nil.
	OnExit ExitFunc

	logger  model.Logger
	workers *workers.Manager

	initOnce sync.Once
	resolved string
	initErr  error
}

var _ model.Runner = &ExecRunner{}

// NewExecRunner creates an [ExecRunner] whose processes are tracked by w.
func NewExecRunner(logger model.Logger, w *workers.Manager, path string, args ...string) *ExecRunner {
	return &ExecRunner{
		Path:    path,
		Args:    args,
		logger:  logger,
		workers: w,
	}
}

// Init resolves the engine binary. Only the first call does any work; later
// calls return the same result.
func (r *ExecRunner) Init() error {
	r.initOnce.Do(func() {
		path, err := exec.LookPath(r.Path)
		if err != nil {
			r.initErr = fmt.Errorf("%w: %w", ErrNoEngine, err)
			return
		}
		r.resolved = path
		r.logger.Debugf("runner: engine is %s", path)
	})
	return r.initErr
}

// Start implements [model.Runner]. It returns once the engine has been
// spawned. Spawn failures are reported through OnExit.
func (r *ExecRunner) Start(handle model.TransportHandle, rawConfig string) {
	cmd, output, err := r.spawn(handle, rawConfig)
	if err != nil {
		r.logger.Errorf("runner: %s: %s", handle.Name(), err)
		closeAndExit(r.logger, handle, r.OnExit, err)
		return
	}
	name := fmt.Sprintf("engine[%d]", cmd.Process.Pid)
	r.logger.Infof("runner: %s owns %s", name, handle.Name())
	r.workers.StartWorker(name, func() {
		err := r.wait(cmd, output)
		if err != nil {
			r.logger.Warnf("runner: %s: %s", name, err)
		}
		closeAndExit(r.logger, handle, r.OnExit, err)
	})
}

type engineOutput struct {
	pw   *io.PipeWriter
	done chan struct{}
}

func (r *ExecRunner) spawn(handle model.TransportHandle, rawConfig string) (*exec.Cmd, *engineOutput, error) {
	if err := r.Init(); err != nil {
		return nil, nil, err
	}
	file, err := fileOf(handle)
	if err != nil {
		return nil, nil, err
	}

	cmd := exec.Command(r.resolved, r.Args...)
	cmd.ExtraFiles = []*os.File{file}
	cmd.Stdin = strings.NewReader(rawConfig)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("SGVPN_TUN_FD=%d", TunFd),
		"SGVPN_TUN_NAME="+handle.Name(),
	)

	cmd.WaitDelay = r.gracePeriod()

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw
	output := &engineOutput{pw: pw, done: make(chan struct{})}
	go func() {
		defer close(output.done)
		scanner := bufio.NewScanner(pr)
		for scanner.Scan() {
			r.logger.Infof("engine: %s", scanner.Text())
		}
	}()

	if err := cmd.Start(); err != nil {
		pw.Close()
		<-output.done
		return nil, nil, err
	}
	return cmd, output, nil
}

// wait waits for the engine, interrupting it when the workers shut down.
func (r *ExecRunner) wait(cmd *exec.Cmd, output *engineOutput) error {
	waitErr := make(chan error, 1)
	go func() {
		waitErr <- cmd.Wait()
	}()

	var err error
	select {
	case err = <-waitErr:
	case <-r.workers.ShouldShutdown():
		err = r.interrupt(cmd, waitErr)
	}
	output.pw.Close()
	<-output.done
	return err
}

func (r *ExecRunner) interrupt(cmd *exec.Cmd, waitErr <-chan error) error {
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		r.logger.Debugf("runner: interrupt: %s", err)
	}
	select {
	case <-waitErr:
		return nil
	case <-time.After(r.gracePeriod()):
		r.logger.Warn("runner: engine ignored the interrupt, killing it")
		cmd.Process.Kill()
		<-waitErr
		return nil
	}
}

func (r *ExecRunner) gracePeriod() time.Duration {
	if r.GracePeriod <= 0 {
		return DefaultGracePeriod
	}
	return r.GracePeriod
}
