package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEarlyLog(t *testing.T) {
	var buf bytes.Buffer
	code := -1
	l := NewEarlyLogTo(&buf, func(c int) { code = c })

	l.Info("loading %s", "indexer.yaml")
	l.Warn("CONFIG_FILE not set")
	assert.Equal(t, -1, code)

	l.Fatal("config: %v", "missing broker")
	assert.Equal(t, 1, code)
	assert.Equal(t, "INFO: loading indexer.yaml\nWARN: CONFIG_FILE not set\nFATAL: config: missing broker\n", buf.String())
}
