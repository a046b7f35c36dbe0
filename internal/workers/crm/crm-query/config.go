// internal/workers/crm/crm-query/config.go
package crmquery

import (
	"fmt"
	"time"

	"salesforce-query-workers/internal/models"
)

type Config struct {
	Enabled       bool          `mapstructure:"enabled"`
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
	OwnerID       string        `mapstructure:"owner_id"`
	LedgerEnabled bool          `mapstructure:"ledger_enabled"`
}

func DefaultConfig() *Config {
	return &Config{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       120 * time.Second,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.OwnerID != "" && !models.IsSalesforceID(c.OwnerID) {
		return fmt.Errorf("owner_id must be a 15 or 18 character Salesforce id")
	}
	return nil
}
