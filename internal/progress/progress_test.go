package progress

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLine(&buf, "axios/axios", 2)

	sink.Interrupt("axios/axios")
	sink.Interrupt("  a/b -> axios@1.0.0 ... success")
	sink.Tick("axios/axios & b")
	sink.Tick("axios/axios & d")

	want := "axios/axios\n" +
		"  a/b -> axios@1.0.0 ... success\n" +
		"axios/axios 1/2(50%) axios/axios & b\n" +
		"axios/axios 2/2(100%) axios/axios & d\n"
	assert.Equal(t, want, buf.String())
}

func TestLineConcurrent(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLine(&buf, "batch", 50)

	var wg sync.WaitGroup
	for range 50 {
		wg.Go(func() {
			sink.Interrupt("line")
			sink.Tick("label")
		})
	}
	wg.Wait()

	assert.Equal(t, 100, strings.Count(buf.String(), "\n"))
	assert.Contains(t, buf.String(), "batch 50/50(100%) label")
}

func TestBar(t *testing.T) {
	var buf bytes.Buffer
	bar := NewBar(&buf, "lib", 4)

	clock := bar.started
	bar.now = func() time.Time { return clock }

	assert.Contains(t, buf.String(), "starting...")
	assert.Contains(t, buf.String(), "0/4(0%)")

	clock = clock.Add(10 * time.Second)
	bar.Tick("lib & first")
	out := buf.String()
	assert.Contains(t, out, "1/4(25%)")
	assert.Contains(t, out, "lib & first")
	assert.Contains(t, out, "30.0s", "three remaining ticks at 10s each")

	buf.Reset()
	bar.Interrupt("  a/b -> lib@1.2.0 ... failure")
	out = buf.String()
	assert.True(t, strings.HasPrefix(out, "\r\033[K"))
	assert.Contains(t, out, "a/b -> lib@1.2.0 ... ")
	assert.Contains(t, out, "failure")
	assert.Contains(t, out, "1/4(25%)", "bar is redrawn after the interrupt line")

	buf.Reset()
	bar.Finish()
	assert.Equal(t, "\n", buf.String())
}

func TestNewFallsBackToLine(t *testing.T) {
	var buf bytes.Buffer

	_, isLine := New(&buf, "t", 1, false).(*Line)
	assert.True(t, isLine, "non-file writers are never terminals")

	_, isLine = New(&buf, "t", 1, true).(*Line)
	assert.True(t, isLine)
}

func TestDiscard(t *testing.T) {
	Discard.Interrupt("ignored")
	Discard.Tick("ignored")
}
