package logging_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/listadmin/internal/logging"
	"github.com/nhle/listadmin/internal/model"
)

func TestNewJSONToFallback(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, closeFn, err := logging.New(model.LogConfig{Level: "debug", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closeFn()

	assert.Equal(t, logrus.DebugLevel, log.GetLevel())
	log.WithField("list_id", "testlist.example.com").Info("synced")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "synced", entry["msg"])
	assert.Equal(t, "testlist.example.com", entry["list_id"])
}

func TestNewWritesToFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "listadmin.log")
	log, closeFn, err := logging.New(model.LogConfig{Level: "info", File: path}, nil)
	require.NoError(t, err)

	log.Info("hello")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
}

func TestNewRejectsBadSettings(t *testing.T) {
	t.Parallel()

	_, _, err := logging.New(model.LogConfig{Level: "loud"}, nil)
	require.Error(t, err)

	_, _, err = logging.New(model.LogConfig{Format: "xml"}, nil)
	require.Error(t, err)
}
