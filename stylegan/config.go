package stylegan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the generator construction parameters.
type Config struct {
	XDim            int     `yaml:"x_dim"`
	WDim            int     `yaml:"w_dim"`
	XDepth          []int   `yaml:"x_depth"`
	NMapping        int     `yaml:"n_mapping"`
	Resolutions     []int   `yaml:"resolutions"`
	Featuremaps     []int   `yaml:"featuremaps"`
	WEmaDecay       float32 `yaml:"w_ema_decay"`
	StyleMixingProb float32 `yaml:"style_mixing_prob"`
	TruncationPsi   float32 `yaml:"truncation_psi"`
	// Nil means every broadcast row is truncated by TruncationPsi.
	TruncationCutoff *int `yaml:"truncation_cutoff"`
}

// LoadConfig reads and validates a YAML generator config.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// NBroadcast is the number of style modulation sites in the synthesis
// ladder: two per resolution.
func (c Config) NBroadcast() int {
	return 2 * len(c.Resolutions)
}

// FinalResolution is the output image resolution.
func (c Config) FinalResolution() int {
	return c.Resolutions[len(c.Resolutions)-1]
}

// Validate checks every construction invariant. Violations are fatal
// configuration defects, reported before any layer is built.
func (c Config) Validate() error {
	if c.XDim <= 0 {
		return fmt.Errorf("x_dim must be positive, got %d", c.XDim)
	}
	if c.WDim <= 0 {
		return fmt.Errorf("w_dim must be positive, got %d", c.WDim)
	}
	if len(c.XDepth) == 0 {
		return fmt.Errorf("x_depth must list at least one field")
	}
	sum := 0
	for i, d := range c.XDepth {
		if d <= 0 {
			return fmt.Errorf("x_depth[%d] must be positive, got %d", i, d)
		}
		sum += d
	}
	if sum != c.XDim {
		return fmt.Errorf("x_depth sums to %d, expected x_dim %d", sum, c.XDim)
	}
	if c.NMapping <= 0 {
		return fmt.Errorf("n_mapping must be positive, got %d", c.NMapping)
	}
	if len(c.Resolutions) == 0 {
		return fmt.Errorf("resolutions must not be empty")
	}
	if len(c.Resolutions) != len(c.Featuremaps) {
		return fmt.Errorf("resolutions has %d entries, featuremaps has %d", len(c.Resolutions), len(c.Featuremaps))
	}
	if c.Resolutions[0] != BaseResolution {
		return fmt.Errorf("resolutions must start at %d, got %d", BaseResolution, c.Resolutions[0])
	}
	for i := 1; i < len(c.Resolutions); i++ {
		if c.Resolutions[i] != 2*c.Resolutions[i-1] {
			return fmt.Errorf("resolutions must strictly double: %d follows %d", c.Resolutions[i], c.Resolutions[i-1])
		}
	}
	for i, f := range c.Featuremaps {
		if f <= 0 {
			return fmt.Errorf("featuremaps[%d] must be positive, got %d", i, f)
		}
	}
	if c.WEmaDecay < 0 || c.WEmaDecay >= 1 {
		return fmt.Errorf("w_ema_decay must be in [0,1), got %g", c.WEmaDecay)
	}
	if c.StyleMixingProb < 0 || c.StyleMixingProb > 1 {
		return fmt.Errorf("style_mixing_prob must be in [0,1], got %g", c.StyleMixingProb)
	}
	if c.TruncationCutoff != nil {
		if cut := *c.TruncationCutoff; cut < 0 || cut > c.NBroadcast() {
			return fmt.Errorf("truncation_cutoff %d out of range [0,%d]", cut, c.NBroadcast())
		}
	}
	return nil
}
