package backend

import (
	"fmt"

	"ledger/internal/config"
	"ledger/internal/core"
)

// FromAppConfig converts the application config to backend config. Without a
// spreadsheet ID the mirror stays in memory.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	mirror := MemoryMirror
	if appConfig.GoogleSpreadsheetID != "" {
		mirror = SheetsMirror
	}

	cfg := Config{
		SQLiteDBPath: appConfig.SQLiteDBPath,

		AmountPolicy:      core.AmountPolicy(appConfig.AmountPolicy),
		RecomputeStrategy: core.RecomputeStrategy(appConfig.RecomputeStrategy),

		UserCacheSize: appConfig.UserCacheSize,
		UserCacheTTL:  appConfig.UserCacheTTL,

		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,

		Mirror:              mirror,
		GoogleSpreadsheetID: appConfig.GoogleSpreadsheetID,
		GoogleSheetName:     appConfig.GoogleSheetName,
	}
	return cfg, cfg.Validate()
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required")
	}
	if !c.AmountPolicy.IsValid() {
		return fmt.Errorf("invalid amount policy: %s", c.AmountPolicy)
	}
	if !c.RecomputeStrategy.IsValid() {
		return fmt.Errorf("invalid recompute strategy: %s", c.RecomputeStrategy)
	}
	if c.UserCacheSize < 0 {
		return fmt.Errorf("user cache size cannot be negative")
	}
	if c.UserCacheSize > 0 && c.UserCacheTTL <= 0 {
		return fmt.Errorf("user cache TTL must be positive")
	}

	switch c.Mirror {
	case SheetsMirror:
		if c.GoogleSpreadsheetID == "" {
			return fmt.Errorf("Google Spreadsheet ID is required for sheets mirror")
		}
		if c.GoogleSheetName == "" {
			return fmt.Errorf("Google Sheet name is required for sheets mirror")
		}
	case MemoryMirror:
	default:
		return fmt.Errorf("invalid mirror type: %s", c.Mirror)
	}

	return nil
}

// GetMirrorTypes returns all valid mirror types
func GetMirrorTypes() []MirrorType {
	return []MirrorType{SheetsMirror, MemoryMirror}
}
