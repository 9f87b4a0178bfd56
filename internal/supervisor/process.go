package supervisor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
)

// Environment and descriptors shared by the supervisor and its children.
const (
	EnvWorkerID = "CLICKRACE_WORKER_ID"
	// ReportsFD carries worker -> supervisor messages.
	ReportsFD = 3
	// ControlFD carries supervisor -> worker messages.
	ControlFD = 4
)

// Process is one running worker as seen from the supervisor.
type Process interface {
	PID() int
	// Reports is the read end of the worker's report pipe.
	Reports() io.ReadCloser
	// Control is the write end of the worker's control pipe.
	Control() io.WriteCloser
	Signal(sig os.Signal) error
	Kill() error
	// Wait blocks until the process exits.
	Wait() error
}

// Launcher starts worker processes.
type Launcher interface {
	Launch(ctx context.Context, workerID int) (Process, error)
}

// ExecLauncher runs workers as child processes of a binary, usually the
// current executable with the "worker" argument.
type ExecLauncher struct {
	path string
	args []string
	env  []string
}

// NewExecLauncher creates a launcher for path with args. Extra env entries
// are appended to the supervisor's environment.
func NewExecLauncher(path string, args []string, env ...string) *ExecLauncher {
	return &ExecLauncher{path: path, args: args, env: env}
}

// SelfLauncher re-executes the running binary in worker mode.
func SelfLauncher() (*ExecLauncher, error) {
	path, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("%w: resolve executable: %w", ErrLaunch, err)
	}
	return NewExecLauncher(path, []string{"worker"}), nil
}

// Launch starts one worker with its two channel pipes on fds 3 and 4.
func (l *ExecLauncher) Launch(_ context.Context, workerID int) (Process, error) {
	reportsR, reportsW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("%w: reports pipe: %w", ErrLaunch, err)
	}
	controlR, controlW, err := os.Pipe()
	if err != nil {
		_ = reportsR.Close()
		_ = reportsW.Close()
		return nil, fmt.Errorf("%w: control pipe: %w", ErrLaunch, err)
	}

	// Not CommandContext: workers are stopped by Shutdown, not by cancellation.
	cmd := exec.Command(l.path, l.args...) //nolint:gosec // path is our own executable
	cmd.Env = append(append(os.Environ(), l.env...), EnvWorkerID+"="+strconv.Itoa(workerID))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = []*os.File{reportsW, controlR}

	startErr := cmd.Start()
	// The child holds its own copies now.
	_ = reportsW.Close()
	_ = controlR.Close()
	if startErr != nil {
		_ = reportsR.Close()
		_ = controlW.Close()
		return nil, fmt.Errorf("%w %d: %w", ErrLaunch, workerID, startErr)
	}
	return &execProcess{cmd: cmd, reports: reportsR, control: controlW}, nil
}

type execProcess struct {
	cmd     *exec.Cmd
	reports *os.File
	control *os.File
}

func (p *execProcess) PID() int                   { return p.cmd.Process.Pid }
func (p *execProcess) Reports() io.ReadCloser     { return p.reports }
func (p *execProcess) Control() io.WriteCloser    { return p.control }
func (p *execProcess) Signal(sig os.Signal) error { return p.cmd.Process.Signal(sig) }
func (p *execProcess) Kill() error                { return p.cmd.Process.Kill() }
func (p *execProcess) Wait() error                { return p.cmd.Wait() }

// Channel is the worker side of the supervisory pipes.
type Channel struct {
	WorkerID int
	Reports  io.WriteCloser
	Control  io.ReadCloser
}

// OpenChannel returns the pipes inherited from the supervisor. It fails with
// ErrNotWorker when the process was started some other way.
func OpenChannel() (*Channel, error) {
	raw, ok := os.LookupEnv(EnvWorkerID)
	if !ok {
		return nil, ErrNotWorker
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id < 0 {
		return nil, fmt.Errorf("%w: bad %s %q", ErrNotWorker, EnvWorkerID, raw)
	}
	reports := os.NewFile(ReportsFD, "reports")
	control := os.NewFile(ControlFD, "control")
	if reports == nil || control == nil {
		return nil, fmt.Errorf("%w: channel descriptors missing", ErrNotWorker)
	}
	return &Channel{WorkerID: id, Reports: reports, Control: control}, nil
}
