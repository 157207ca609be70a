package app

import (
	"jobledger/internal/config"
)

// ResolveConfig loads the workspace config, falling back to the default
// ledger when no jobledger.yml exists yet. Party identities referenced by
// jobs do not have to appear in the catalog; the catalog only drives
// display names and defaults.
func ResolveConfig(workspace string) (*config.Config, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default("site-ledger")
	}
	return cfg, nil
}
