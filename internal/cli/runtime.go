package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/listadmin/internal/credential"
	"github.com/nhle/listadmin/internal/dashboard"
	"github.com/nhle/listadmin/internal/logging"
	"github.com/nhle/listadmin/internal/mailman"
	"github.com/nhle/listadmin/internal/model"
	"github.com/nhle/listadmin/internal/store"
)

// runtime is everything a command needs to talk to Mailman and the local
// database.
type runtime struct {
	cfg     *model.AppConfig
	log     *logrus.Logger
	store   *store.SQLiteStore
	adapter *mailman.Adapter
	service *dashboard.Service
	closers []func() error
}

// loadConfig reads the configuration file and applies the global flag
// overrides.
func loadConfig(g globals) (*model.AppConfig, error) {
	cfg, err := model.LoadConfig(g.configPath)
	if err != nil {
		return nil, err
	}
	if g.dbPath != "" {
		cfg.Database.Path = g.dbPath
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	return cfg, nil
}

// openRuntime loads the configuration and opens the logger, the store and
// the Mailman adapter. Logs go to the configured file, or to logOut when
// none is configured.
func openRuntime(g globals, logOut io.Writer) (*runtime, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}

	r := &runtime{cfg: cfg}

	log, closeLog, err := logging.New(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}
	r.log = log
	r.closers = append(r.closers, closeLog)

	password, err := credential.MailmanPassword(cfg.Mailman.APIPass)
	if err != nil {
		// Headless hosts may have no keyring; continue with an empty password.
		log.WithError(err).Warn("reading the REST password from the keyring")
	}

	st, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.store = st
	r.closers = append(r.closers, st.Close)

	r.adapter = mailman.NewAdapterFromConfig(cfg.Mailman, password)
	r.service = dashboard.New(dashboard.Env{
		Remote: r.adapter,
		Store:  st,
		Log:    log,
	})

	log.WithFields(logrus.Fields{
		"api_url":  cfg.Mailman.APIURL,
		"database": cfg.Database.Path,
	}).Debug("runtime opened")
	return r, nil
}

// timeout returns the per-call timeout from the configuration.
func (r *runtime) timeout() time.Duration {
	return time.Duration(r.cfg.Mailman.TimeoutSec) * time.Second
}

// Close releases the store and the log file, in reverse order of opening.
func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	if len(errs) > 0 {
		return fmt.Errorf("closing runtime: %w", errors.Join(errs...))
	}
	return nil
}
