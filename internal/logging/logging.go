package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nhle/listadmin/internal/model"
)

// New builds the application logger from cfg. Output goes to cfg.File when
// set, otherwise to fallback; a nil fallback discards output. The returned
// close function releases the log file and is always safe to call.
func New(cfg model.LogConfig, fallback io.Writer) (*logrus.Logger, func() error, error) {
	log := logrus.New()
	closeFn := func() error { return nil }

	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
		if err != nil {
			return nil, closeFn, fmt.Errorf("parsing log level: %w", err)
		}
		level = parsed
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, closeFn, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	switch {
	case cfg.File != "":
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return nil, closeFn, fmt.Errorf("creating log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, closeFn, fmt.Errorf("opening log file: %w", err)
		}
		log.SetOutput(f)
		closeFn = f.Close
	case fallback != nil:
		log.SetOutput(fallback)
	default:
		log.SetOutput(io.Discard)
	}

	return log, closeFn, nil
}
