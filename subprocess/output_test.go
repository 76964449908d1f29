package subprocess

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputCollector(t *testing.T) {
	for testName, testCase := range map[string]func(t *testing.T, c *OutputCollector){
		"EmptyStreamsSnapshotToEmptyStrings": func(t *testing.T, c *OutputCollector) {
			snapshot := c.Snapshot()
			assert.Equal(t, "", snapshot.Stdout)
			assert.Equal(t, "", snapshot.Stderr)
			assert.Zero(t, snapshot.Size())
		},
		"ChunksAreConcatenatedInOrder": func(t *testing.T, c *OutputCollector) {
			for _, chunk := range []string{"one ", "two ", "three"} {
				_, err := c.Stdout().Write([]byte(chunk))
				assert.NoError(t, err)
			}
			assert.Equal(t, "one two three", c.Snapshot().Stdout)
			assert.Equal(t, "", c.Snapshot().Stderr)
		},
		"StreamsAreKeptSeparate": func(t *testing.T, c *OutputCollector) {
			fmt.Fprint(c.Stdout(), "out")
			fmt.Fprint(c.Stderr(), "err")
			snapshot := c.Snapshot()
			assert.Equal(t, "out", snapshot.Stdout)
			assert.Equal(t, "err", snapshot.Stderr)
			assert.Equal(t, 6, snapshot.Size())
		},
		"EmptyWritesAreIgnored": func(t *testing.T, c *OutputCollector) {
			n, err := c.Stdout().Write(nil)
			assert.NoError(t, err)
			assert.Zero(t, n)
			assert.Equal(t, "", c.Snapshot().Stdout)
		},
		"SealedCollectorDropsWrites": func(t *testing.T, c *OutputCollector) {
			fmt.Fprint(c.Stderr(), "before")
			c.Seal()
			n, err := c.Stderr().Write([]byte("after"))
			assert.NoError(t, err)
			assert.Equal(t, 5, n)
			assert.Equal(t, "before", c.Snapshot().Stderr)
		},
		"MirrorsReceiveChunks": func(t *testing.T, c *OutputCollector) {
			stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
			c.SetMirrors(stdout, stderr)
			fmt.Fprint(c.Stdout(), "hello")
			fmt.Fprint(c.Stderr(), "oops")
			assert.Equal(t, "hello", stdout.String())
			assert.Equal(t, "oops", stderr.String())
		},
		"ConcurrentWritersAreSafe": func(t *testing.T, c *OutputCollector) {
			wg := &sync.WaitGroup{}
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					fmt.Fprint(c.Stdout(), "x")
					_ = c.Snapshot()
				}()
			}
			wg.Wait()
			assert.Len(t, c.Snapshot().Stdout, 20)
		},
	} {
		t.Run(testName, func(t *testing.T) {
			testCase(t, NewOutputCollector())
		})
	}
}
