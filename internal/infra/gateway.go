package infra

import (
	"crypto/tls"
	"net/http"
	"time"

	"fiscalgate/internal/config"
	"fiscalgate/internal/fiscal"
	"fiscalgate/internal/model"
)

// GatewayFactory builds fiscal gateway clients for registers. Each register
// selects its base URL by mode (ACTIVE/TEST) and shares the process-wide
// token store and HTTP connection pool.
type GatewayFactory struct {
	cfg   *config.Config
	store fiscal.TokenStore
	http  *http.Client
}

func NewGatewayFactory(cfg *config.Config, store fiscal.TokenStore) *GatewayFactory {
	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GatewayFactory{
		cfg:   cfg,
		store: store,
		// One client for all registers — gateway connections are reused
		// instead of a fresh transport per call.
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.GatewayInsecureSkipVerify},
			},
		},
	}
}

// SettingsFor materializes builder/client settings for a register, resolving
// the host-wide service email default.
func (f *GatewayFactory) SettingsFor(reg *model.Register) fiscal.RegisterSettings {
	return reg.Settings(f.cfg.ServiceEmail)
}

// ClientFor returns a gateway client bound to one register.
func (f *GatewayFactory) ClientFor(reg *model.Register) *fiscal.Client {
	return fiscal.NewClient(fiscal.ClientConfig{
		BaseURL:    f.cfg.GatewayBaseURL(reg.Mode),
		Timeout:    f.cfg.GatewayTimeout,
		HTTPClient: f.http,
	}, f.SettingsFor(reg), f.store)
}
