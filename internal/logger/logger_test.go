package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_JSONWithComponent(t *testing.T) {
	Init("debug")
	var buf bytes.Buffer
	Log.SetOutput(&buf)

	Component("settlement").WithField("order_id", "o-1").Info("готово")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "settlement", entry["component"])
	assert.Equal(t, "o-1", entry["order_id"])
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())
}

func TestInit_UnknownLevelFallsBackToInfo(t *testing.T) {
	Init("verbose")
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())
}
