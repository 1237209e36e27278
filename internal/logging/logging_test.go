package logging

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureLog(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		debug.Store(false)
	})
	return &buf
}

func TestDebugfRespectsFlag(t *testing.T) {
	buf := captureLog(t)

	Init(false)
	Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	Init(true)
	assert.True(t, DebugEnabled())
	Debugf("shown %d", 2)
	assert.Contains(t, buf.String(), "[DEBUG] shown 2")
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", RequestID(ctx))
	assert.Empty(t, RequestID(context.Background()))
}

func TestTimeLogsErrors(t *testing.T) {
	buf := captureLog(t)
	ctx := WithRequestID(context.Background(), "r1")

	err := errors.New("boom")
	Time(ctx, "route.compute")(&err)

	assert.Contains(t, buf.String(), "req_id=r1 op=route.compute")
	assert.Contains(t, buf.String(), "err=boom")
}
