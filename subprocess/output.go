package subprocess

import (
	"io"
	"strings"
	"sync"
)

// OutputSnapshot is the captured output of a process at one point in time.
type OutputSnapshot struct {
	Stdout string
	Stderr string
}

// Size returns the number of captured bytes across both streams.
func (s OutputSnapshot) Size() int {
	return len(s.Stdout) + len(s.Stderr)
}

// OutputCollector keeps every chunk a process writes to stdout and stderr,
// in arrival order. It is safe for concurrent use.
type OutputCollector struct {
	stdout []string
	stderr []string
	sealed bool
	mutex  sync.RWMutex

	stdoutMirror io.Writer
	stderrMirror io.Writer
}

// NewOutputCollector returns an empty collector.
func NewOutputCollector() *OutputCollector {
	return &OutputCollector{}
}

// SetMirrors forwards every chunk to the given writers as well. Either may be
// nil. Mirror write errors are ignored.
func (c *OutputCollector) SetMirrors(stdout, stderr io.Writer) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.stdoutMirror = stdout
	c.stderrMirror = stderr
}

// Stdout returns the writer for the standard output stream.
func (c *OutputCollector) Stdout() io.Writer { return &streamWriter{collector: c, stderr: false} }

// Stderr returns the writer for the standard error stream.
func (c *OutputCollector) Stderr() io.Writer { return &streamWriter{collector: c, stderr: true} }

// Seal stops the collector from accepting more output. Writes after Seal
// are discarded.
func (c *OutputCollector) Seal() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.sealed = true
}

// Snapshot concatenates the chunks captured so far.
func (c *OutputCollector) Snapshot() OutputSnapshot {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return OutputSnapshot{
		Stdout: strings.Join(c.stdout, ""),
		Stderr: strings.Join(c.stderr, ""),
	}
}

func (c *OutputCollector) append(stderr bool, p []byte) {
	c.mutex.Lock()
	if c.sealed {
		c.mutex.Unlock()
		return
	}

	var mirror io.Writer
	if stderr {
		c.stderr = append(c.stderr, string(p))
		mirror = c.stderrMirror
	} else {
		c.stdout = append(c.stdout, string(p))
		mirror = c.stdoutMirror
	}
	c.mutex.Unlock()

	if mirror != nil {
		_, _ = mirror.Write(p)
	}
}

type streamWriter struct {
	collector *OutputCollector
	stderr    bool
}

func (w *streamWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	w.collector.append(w.stderr, p)
	return len(p), nil
}
