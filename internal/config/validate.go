package config

func ValidateForRun(cfg *Config) error {
	if cfg.UserID == "" {
		return ErrUserIDMissing
	}
	if cfg.LocalStore == nil || cfg.LocalStore.Path == "" {
		return ErrStorePathMissing
	}
	return cfg.Redis.Validate()
}
