package smoke

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/evergreen-ci/shutdowncheck/subprocess"
	"github.com/evergreen-ci/shutdowncheck/testutil"
)

func TestMain(m *testing.M) {
	testutil.RunFakeGatewayIfRequested()
	os.Exit(m.Run())
}

// fakeHandle is an in-memory ProcessHandle.
type fakeHandle struct {
	output    *subprocess.OutputCollector
	done      chan struct{}
	once      sync.Once
	mutex     sync.Mutex
	outcome   subprocess.ExitOutcome
	signals   []os.Signal
	signalErr error
	// onSignal runs after a signal is recorded.
	onSignal func(f *fakeHandle, sig os.Signal)
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{output: subprocess.NewOutputCollector(), done: make(chan struct{})}
}

func (f *fakeHandle) exit(outcome subprocess.ExitOutcome) {
	f.once.Do(func() {
		f.mutex.Lock()
		f.outcome = outcome
		f.mutex.Unlock()
		close(f.done)
	})
}

func (f *fakeHandle) PID() int                            { return 4242 }
func (f *fakeHandle) Done() <-chan struct{}               { return f.done }
func (f *fakeHandle) Output() *subprocess.OutputCollector { return f.output }

func (f *fakeHandle) Outcome() (subprocess.ExitOutcome, bool) {
	select {
	case <-f.done:
	default:
		return subprocess.ExitOutcome{}, false
	}
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return f.outcome, true
}

func (f *fakeHandle) Signal(sig os.Signal) error {
	f.mutex.Lock()
	f.signals = append(f.signals, sig)
	err := f.signalErr
	f.mutex.Unlock()

	if err != nil {
		return err
	}
	if f.onSignal != nil {
		f.onSignal(f, sig)
	}
	return nil
}

func (f *fakeHandle) Wait(ctx context.Context) (subprocess.ExitOutcome, error) {
	select {
	case <-ctx.Done():
		return subprocess.ExitOutcome{}, ctx.Err()
	case <-f.done:
	}
	outcome, _ := f.Outcome()
	return outcome, nil
}

func (f *fakeHandle) sentSignals() []os.Signal {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	return append([]os.Signal(nil), f.signals...)
}
