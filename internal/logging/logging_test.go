package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup("debug", "json", &buf)
	t.Cleanup(func() { Setup("info", "text", nil) })

	For("worker").WithField("sent", 2).Debug("event reminders sent")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "worker", entry["component"])
	assert.Equal(t, "event reminders sent", entry["msg"])
	assert.EqualValues(t, 2, entry["sent"])
}

func TestSetupUnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	Setup("loud", "text", &buf)
	t.Cleanup(func() { Setup("info", "text", nil) })

	assert.Equal(t, logrus.InfoLevel, logrus.GetLevel())
	logrus.Debug("hidden")
	assert.Empty(t, buf.String())
}
