package main

import (
	"context"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reportsync/internal/config"
	"github.com/sells-group/reportsync/internal/ingest"
	"github.com/sells-group/reportsync/internal/report"
	"github.com/sells-group/reportsync/internal/reports"
	"github.com/sells-group/reportsync/internal/store"
	"github.com/sells-group/reportsync/internal/tablesync"
)

// env holds what every storage command needs for one run.
type env struct {
	Store   store.Store
	Catalog *report.Catalog
	Log     *ingest.Log
}

// Close releases the store.
func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv opens the configured store, builds the report catalog and makes sure
// the ingest log exists.
func initEnv(ctx context.Context, c *config.Config) (*env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	cat, err := reports.NewCatalog()
	if err != nil {
		return nil, err
	}
	if err := applyPolicies(cat, c.Ingest.Policies); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, storeConfig(c, cat))
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}

	log := ingest.NewLog(st)
	if err := log.Ensure(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return &env{Store: st, Catalog: cat, Log: log}, nil
}

// applyPolicies installs the configured sync policy overrides.
func applyPolicies(cat *report.Catalog, policies map[string]string) error {
	ids := make([]string, 0, len(policies))
	for id := range policies {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		p, err := tablesync.ParsePolicy(policies[id])
		if err != nil {
			return eris.Wrapf(err, "config: ingest.policies.%s", id)
		}
		if err := cat.SetPolicy(id, p); err != nil {
			return eris.Wrapf(err, "config: ingest.policies.%s", id)
		}
	}
	return nil
}

// storeConfig maps the configured store onto the schemas the catalog writes to.
func storeConfig(c *config.Config, cat *report.Catalog) store.Config {
	var schemas []string
	for _, def := range cat.Tables().All() {
		if def.Schema != "" && !slices.Contains(schemas, def.Schema) {
			schemas = append(schemas, def.Schema)
		}
	}
	return store.Config{
		Driver:          c.Store.Driver,
		Dir:             c.Store.Dir,
		DatabaseURL:     c.Store.DatabaseURL,
		Schemas:         schemas,
		MaxConns:        c.Store.MaxConns,
		ConnectAttempts: c.Store.ConnectAttempts,
	}
}

// engine builds an ingest engine with the configured options.
func (e *env) engine(c *config.Config, strict bool) *ingest.Engine {
	return ingest.NewEngine(e.Store, e.Catalog, e.Log, ingest.Options{
		Strict:   strict || c.Ingest.Strict,
		Encoding: c.Ingest.Encoding,
		TempDir:  c.Ingest.TempDir,

		ChunkSize:    c.Ingest.DeleteChunk,
		SyncAttempts: c.Ingest.SyncAttempts,
	})
}
