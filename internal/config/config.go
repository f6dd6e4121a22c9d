package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the full filter configuration
type Config struct {
	Tex      TexConfig
	Dvisvgm  DvisvgmConfig
	Output   OutputConfig
	Refiner  RefinerConfig
	LogLevel string
}

type TexConfig struct {
	Engine    string
	Args      []string
	Preamble  string
	Postamble string
	WorkDir   string
	KeepWork  bool
	Timeout   time.Duration
}

type DvisvgmConfig struct {
	Path     string
	Args     []string
	MaxPages int
	Timeout  time.Duration
}

type OutputConfig struct {
	LZMALoaderURL string
	SVGClass      string
	MinifySVG     bool
	BaselineAlign bool
}

type RefinerConfig struct {
	EpsilonPt float64
}

// ConfigError marks a bad or missing configuration value. The CLI maps it
// to exit code 2.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Key, e.Reason)
}

const configName = "jlconfig"

// LoadConfig loads jlconfig.toml from (a) the executable's directory and
// (b) the working directory, the latter overriding the former, then applies
// JLATEX_* environment variables on top. An explicit path replaces the
// two-location search entirely.
func LoadConfig(explicitPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("JLATEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, &ConfigError{Key: explicitPath, Reason: err.Error()}
		}
	} else {
		if exe, err := os.Executable(); err == nil {
			if err := mergeFile(v, filepath.Join(filepath.Dir(exe), configName+".toml")); err != nil {
				return nil, err
			}
		}
		if wd, err := os.Getwd(); err == nil {
			if err := mergeFile(v, filepath.Join(wd, configName+".toml")); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{
		Tex: TexConfig{
			Engine:    v.GetString("tex_engine"),
			Args:      v.GetStringSlice("tex_args"),
			Preamble:  v.GetString("preamble"),
			Postamble: v.GetString("postamble"),
			WorkDir:   v.GetString("work_dir"),
			KeepWork:  v.GetBool("keep_work_dir"),
			Timeout:   time.Duration(v.GetInt("tex_timeout_secs")) * time.Second,
		},
		Dvisvgm: DvisvgmConfig{
			Path:     v.GetString("dvisvgm_path"),
			Args:     v.GetStringSlice("dvisvgm_args"),
			MaxPages: v.GetInt("max_pages"),
			Timeout:  time.Duration(v.GetInt("dvisvgm_timeout_secs")) * time.Second,
		},
		Output: OutputConfig{
			LZMALoaderURL: v.GetString("lzma_loader_url"),
			SVGClass:      v.GetString("svg_class"),
			MinifySVG:     v.GetBool("minify_svg"),
			BaselineAlign: v.GetBool("baseline_align"),
		},
		Refiner: RefinerConfig{
			EpsilonPt: v.GetFloat64("refiner_epsilon_pt"),
		},
		LogLevel: v.GetString("log_level"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func mergeFile(v *viper.Viper, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &ConfigError{Key: path, Reason: err.Error()}
	}
	defer f.Close()
	if err := v.MergeConfig(f); err != nil {
		return &ConfigError{Key: path, Reason: err.Error()}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("tex_engine", "pdflatex")
	v.SetDefault("tex_args", []string{})
	v.SetDefault("dvisvgm_path", "dvisvgm")
	v.SetDefault("dvisvgm_args", []string{"--pdf", "--no-fonts", "--bbox=papersize", "--precision=6"})
	v.SetDefault("preamble", "\\documentclass[12pt]{article}\n\\pagestyle{empty}\n\\begin{document}")
	v.SetDefault("postamble", "\\end{document}")
	v.SetDefault("work_dir", os.TempDir())
	v.SetDefault("keep_work_dir", false)
	v.SetDefault("lzma_loader_url", "https://cdn.jsdelivr.net/npm/lzma@2.3.2/src/lzma_worker-min.js")
	v.SetDefault("svg_class", "svg-math")
	v.SetDefault("max_pages", 1)
	v.SetDefault("refiner_epsilon_pt", 0.1)
	v.SetDefault("baseline_align", true)
	v.SetDefault("minify_svg", true)
	v.SetDefault("log_level", "info")
	v.SetDefault("tex_timeout_secs", 120)
	v.SetDefault("dvisvgm_timeout_secs", 60)
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.Tex.Engine) == "" {
		return &ConfigError{Key: "tex_engine", Reason: "must not be empty"}
	}
	if strings.TrimSpace(c.Dvisvgm.Path) == "" {
		return &ConfigError{Key: "dvisvgm_path", Reason: "must not be empty"}
	}
	if c.Dvisvgm.MaxPages < 1 {
		return &ConfigError{Key: "max_pages", Reason: "must be at least 1"}
	}
	if c.Refiner.EpsilonPt < 0 {
		return &ConfigError{Key: "refiner_epsilon_pt", Reason: "must not be negative"}
	}
	if c.Tex.Timeout <= 0 {
		return &ConfigError{Key: "tex_timeout_secs", Reason: "must be positive"}
	}
	if c.Dvisvgm.Timeout <= 0 {
		return &ConfigError{Key: "dvisvgm_timeout_secs", Reason: "must be positive"}
	}
	return nil
}
