package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/nhle/listadmin/internal/credential"
	"github.com/nhle/listadmin/internal/mailman"
	"github.com/nhle/listadmin/internal/model"
)

// settingsSaver checks settings against the server and writes them to the
// configuration file and the keyring.
type settingsSaver struct {
	path string
}

func (s settingsSaver) Validate(ctx context.Context, cfg model.MailmanConfig, password string) (string, error) {
	if password == "" {
		stored, err := credential.MailmanPassword(cfg.APIPass)
		if err != nil {
			return "", err
		}
		password = stored
	}
	adapter := mailman.NewAdapter(cfg.APIURL, cfg.APIUser, password, time.Duration(cfg.TimeoutSec)*time.Second)
	return adapter.ValidateConnection(ctx)
}

// Save never writes the password to the file; one taken from the file is
// moved to the keyring.
func (s settingsSaver) Save(cfg *model.AppConfig, password string) error {
	if password == "" {
		password = cfg.Mailman.APIPass
	}
	if password != "" {
		if err := credential.Set(credential.MailmanPasswordKey, password); err != nil {
			return fmt.Errorf("storing password: %w", err)
		}
	}
	return model.SaveConfig(s.path, cfg)
}
