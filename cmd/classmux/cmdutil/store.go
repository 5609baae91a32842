package cmdutil

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/classmux/classmux/pkg/config"
	"github.com/classmux/classmux/pkg/store"
)

// OpenStore loads configuration and connects to the shared database.
//
// The caller owns the returned store and must Close it. Management
// commands use this to operate on the same database the servers do;
// point --config (or CLASSMUX_DATABASE_*) at it.
func OpenStore(cmd *cobra.Command) (*store.Store, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return nil, err
	}

	st, err := store.New(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return st, nil
}
