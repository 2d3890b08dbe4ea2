package lambert

import (
	"bytes"
	"testing"

	"github.com/go-kit/log/level"
	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info")
	level.Debug(logger).Log("msg", "hidden")
	level.Info(logger).Log("msg", "shown", "dt", 1500.)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "level=info")
	assert.Contains(t, buf.String(), "msg=shown dt=1500")
	assert.Contains(t, buf.String(), "ts=")

	buf.Reset()
	logger = NewLogger(&buf, "DEBUG")
	level.Debug(logger).Log("msg", "shown")
	assert.Contains(t, buf.String(), "level=debug")

	buf.Reset()
	logger = NewLogger(&buf, "none")
	level.Error(logger).Log("msg", "hidden")
	assert.Empty(t, buf.String())
}
