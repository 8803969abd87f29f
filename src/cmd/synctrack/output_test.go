// FILE: synctrack/src/cmd/synctrack/output_test.go
package main

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputHandler(t *testing.T) {
	t.Run("SplitsStreams", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		o := newOutputHandler(false, &stdout, &stderr)

		o.Print("Got %d %s objects\n", 2, "Dog")
		o.Error("Error: %s\n", "boom")

		assert.Equal(t, "Got 2 Dog objects\n", stdout.String())
		assert.Equal(t, "Error: boom\n", stderr.String())
	})

	t.Run("Quiet", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		o := newOutputHandler(true, &stdout, &stderr)

		o.Print("Done\n")
		o.Error("Error: boom\n")

		assert.Empty(t, stdout.String())
		assert.Empty(t, stderr.String())
	})

	t.Run("ConcurrentLinesStayWhole", func(t *testing.T) {
		var stderr bytes.Buffer
		o := newOutputHandler(false, &bytes.Buffer{}, &stderr)

		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				for i := 0; i < 50; i++ {
					o.Error("worker %d line %d\n", w, i)
				}
			}(w)
		}
		wg.Wait()

		lines := strings.Split(strings.TrimSuffix(stderr.String(), "\n"), "\n")
		assert.Len(t, lines, 400)
		for _, line := range lines {
			var w, i int
			_, err := fmt.Sscanf(line, "worker %d line %d", &w, &i)
			assert.NoError(t, err, "mangled line %q", line)
		}
	})
}
