package klog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupFiltersLevels(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Setup(&buf, "warning"))
	log := New("sched")
	log.Infof("hidden %d", 1)
	log.Warningf("shown %d", 2)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown 2")
	assert.Contains(t, out, "sched")
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Setup(nil, "loud"))
}
