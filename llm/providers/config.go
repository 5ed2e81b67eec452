package providers

import "time"

// Config is the per-provider configuration named in §6: base URL,
// credential handle, model identifier, default timeout, max retries (the
// retry count itself is pool-wide per §4.1; Config only carries what's
// specific to reaching the provider).
type Config struct {
	APIKey         string        `yaml:"api_key" env:"API_KEY"`
	BaseURL        string        `yaml:"base_url" env:"BASE_URL"`
	Model          string        `yaml:"model" env:"MODEL"`
	Timeout        time.Duration `yaml:"timeout" env:"TIMEOUT"`
	ConcurrencyCap int64         `yaml:"concurrency_cap" env:"CONCURRENCY_CAP"`
}

// TimeoutOrDefault returns c.Timeout, or a 60s default when unset.
func (c Config) TimeoutOrDefault() time.Duration {
	if c.Timeout <= 0 {
		return 60 * time.Second
	}
	return c.Timeout
}
