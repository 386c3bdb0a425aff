package main

import (
	"context"
	"os"

	salesforcelib "github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-navigator/internal/crm"
	"github.com/sells-group/lead-navigator/internal/insight"
	"github.com/sells-group/lead-navigator/internal/service"
	"github.com/sells-group/lead-navigator/internal/store"
	anthropicpkg "github.com/sells-group/lead-navigator/pkg/anthropic"
	sfpkg "github.com/sells-group/lead-navigator/pkg/salesforce"
	"github.com/sells-group/lead-navigator/pkg/suitecrm"
)

// appEnv holds the initialized store, CRM client, and orchestration service
// shared by the CLI commands and the HTTP server.
type appEnv struct {
	Store   store.Store
	Service *service.Service
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv sets up the store, the CRM client, and the insight generator, and
// wires them into the service. Callers should defer env.Close().
func initEnv(ctx context.Context) (*appEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	crmClient, err := initCRM()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	gen := initGenerator()

	return &appEnv{
		Store:   st,
		Service: service.New(st, crmClient, gen),
	}, nil
}

// initStore opens the configured persistence backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.Path
		if path == "" {
			path = "leadnavigator.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initCRM builds the lead source for the configured provider.
func initCRM() (crm.Client, error) {
	switch cfg.CRM.Provider {
	case "suitecrm":
		client := suitecrm.NewClient(cfg.SuiteCRM.BaseURL, suitecrm.Credentials{
			ClientID: cfg.SuiteCRM.ClientID,
			Username: cfg.SuiteCRM.Username,
			Password: cfg.SuiteCRM.Password,
		},
			suitecrm.WithPageSize(cfg.CRM.PageSize),
			suitecrm.WithRateLimit(cfg.CRM.RateLimit),
		)
		return crm.NewSuiteCRMSource(client), nil
	case "salesforce":
		sfClient, err := initSalesforce()
		if err != nil {
			return nil, err
		}
		return crm.NewSalesforceSource(sfClient, cfg.CRM.PageSize), nil
	default:
		return nil, eris.Errorf("unsupported crm provider: %s", cfg.CRM.Provider)
	}
}

func initSalesforce() (sfpkg.Client, error) {
	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := salesforcelib.Init(salesforcelib.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf, sfpkg.WithRateLimit(cfg.CRM.RateLimit)), nil
}

// initGenerator builds the insight selector. The hosted strategy is only
// enabled when an Anthropic key is configured; otherwise the rule-based
// analyzer runs alone.
func initGenerator() *insight.Selector {
	analyzer := insight.NewAnalyzer()

	var llm insight.Generator
	if cfg.Anthropic.Key != "" {
		llm = insight.NewLLMGenerator(anthropicpkg.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
		zap.L().Info("hosted insight generation enabled", zap.String("model", cfg.Anthropic.Model))
	} else {
		zap.L().Debug("NAVIGATOR_ANTHROPIC_KEY not set, using rule-based insights only")
	}

	return insight.NewSelector(llm, analyzer)
}
