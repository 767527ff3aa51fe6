package logging_test

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/hydrocam/waterseg/logging"
)

func TestSetup(t *testing.T) {
	defer logging.Setup(logging.DefaultConfig())

	file := filepath.Join(t.TempDir(), "logs", "waterseg.log")
	require.NoError(t, logging.Setup(logging.Config{Level: "debug", Format: "json", File: file}))
	require.Equal(t, log.DebugLevel, log.GetLevel())

	log.WithField("epoch", 1).Info("hello")
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(data), `"epoch":1`)

	require.Error(t, logging.Setup(logging.Config{Level: "loud"}))
	require.Error(t, logging.Setup(logging.Config{Level: "info", Format: "xml"}))
}
