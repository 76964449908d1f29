package subprocess

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v3/process"
)

// ResidentMemory returns the resident set size of the running process in
// bytes.
func (p *Process) ResidentMemory(ctx context.Context) (uint64, error) {
	if !p.Running() {
		return 0, errors.Wrapf(os.ErrProcessDone, "reading memory of process %d", p.PID())
	}

	proc, err := process.NewProcessWithContext(ctx, int32(p.PID()))
	if err != nil {
		return 0, errors.Wrapf(err, "finding process %d", p.PID())
	}
	mem, err := proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return 0, errors.Wrapf(err, "reading memory of process %d", p.PID())
	}

	return mem.RSS, nil
}
