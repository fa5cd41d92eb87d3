package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/lab"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/sandbox"
	"github.com/jimoh1644/cloud-based-virtual-laboratory/internal/storage"
)

type RateLimitConfig struct {
	PerMinute     float64 `mapstructure:"per_minute"`
	Burst         int     `mapstructure:"burst"`
	MaxConcurrent int     `mapstructure:"max_concurrent"`
}

type ServerConfig struct {
	Port           int             `mapstructure:"port"`
	AllowedOrigins []string        `mapstructure:"allowed_origins"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

type StorageConfig struct {
	DBPath string `mapstructure:"db_path"`
}

type SandboxConfig struct {
	Backend         string        `mapstructure:"backend"`
	Interpreter     string        `mapstructure:"interpreter"`
	InterpreterArgs []string      `mapstructure:"interpreter_args"`
	Image           string        `mapstructure:"image"`
	Memory          string        `mapstructure:"memory"`
	Network         bool          `mapstructure:"network"`
	Timeout         time.Duration `mapstructure:"timeout"`
	TempDir         string        `mapstructure:"temp_dir"`
	MaxOutputBytes  int64         `mapstructure:"max_output_bytes"`

	// Used by the remote backend only.
	RemoteBinary string            `mapstructure:"remote_binary"`
	RemoteEnv    map[string]string `mapstructure:"remote_env"`
}

type LabSeedConfig struct {
	Title          string `mapstructure:"title"`
	Description    string `mapstructure:"description"`
	ExpectedOutput string `mapstructure:"expected_output"`
}

type SeedConfig struct {
	InstructorName     string        `mapstructure:"instructor_name"`
	InstructorEmail    string        `mapstructure:"instructor_email"`
	InstructorPassword string        `mapstructure:"instructor_password"`
	Lab                LabSeedConfig `mapstructure:"lab"`
}

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Storage StorageConfig `mapstructure:"storage"`
	Sandbox SandboxConfig `mapstructure:"sandbox"`
	Seed    SeedConfig    `mapstructure:"seed"`
}

// Load reads vlab.yaml from the working directory or $HOME/.vlab. A missing
// file is not an error; defaults and VLAB_* environment variables apply.
// Variables in a .env file in the working directory are loaded first and
// never override the real environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile reads configuration from path, or searches the default locations
// when path is empty.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("vlab")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.vlab")
	}

	v.SetEnvPrefix("VLAB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Expand environment variable references like ${VAR}
	cfg.Seed.InstructorPassword = expandEnv(cfg.Seed.InstructorPassword)
	for k, v := range cfg.Sandbox.RemoteEnv {
		cfg.Sandbox.RemoteEnv[k] = expandEnv(v)
	}

	return &cfg, nil
}

func expandEnv(v string) string {
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return os.Getenv(v[2 : len(v)-1])
	}
	return v
}

func setDefaults(v *viper.Viper) {
	def := sandbox.DefaultPolicy()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit.per_minute", 30)
	v.SetDefault("server.rate_limit.burst", 10)
	v.SetDefault("server.rate_limit.max_concurrent", 8)
	v.SetDefault("storage.db_path", filepath.Join(os.Getenv("HOME"), ".vlab", "vlab.db"))

	v.SetDefault("sandbox.backend", def.Backend)
	v.SetDefault("sandbox.interpreter", def.Interpreter)
	v.SetDefault("sandbox.interpreter_args", def.InterpreterArgs)
	v.SetDefault("sandbox.image", def.Image)
	v.SetDefault("sandbox.memory", def.Memory)
	v.SetDefault("sandbox.network", def.Network)
	v.SetDefault("sandbox.timeout", def.Timeout)
	v.SetDefault("sandbox.temp_dir", "")
	v.SetDefault("sandbox.max_output_bytes", def.MaxOutputBytes)
	v.SetDefault("sandbox.remote_binary", "lab-runner")

	v.SetDefault("seed.instructor_name", "Instructor")
	v.SetDefault("seed.instructor_email", "instructor@gmail.com")
	v.SetDefault("seed.instructor_password", "password")
	v.SetDefault("seed.lab.title", "Basic Python")
	v.SetDefault("seed.lab.description", "Print statements and variables")
	v.SetDefault("seed.lab.expected_output", "Hello World")
}

// Policy converts the sandbox section into a sandbox.Policy.
func (c *Config) Policy() sandbox.Policy {
	s := c.Sandbox
	return sandbox.Policy{
		Backend:         s.Backend,
		Interpreter:     s.Interpreter,
		InterpreterArgs: s.InterpreterArgs,
		Image:           s.Image,
		Memory:          s.Memory,
		Network:         s.Network,
		Timeout:         s.Timeout,
		TempDir:         s.TempDir,
		MaxOutputBytes:  s.MaxOutputBytes,
	}
}

// SeedData converts the seed section into bootstrap records.
func (c *Config) SeedData() lab.Seed {
	return lab.Seed{
		InstructorName:     c.Seed.InstructorName,
		InstructorEmail:    c.Seed.InstructorEmail,
		InstructorPassword: c.Seed.InstructorPassword,
		Lab: storage.LabExercise{
			Title:          c.Seed.Lab.Title,
			Description:    c.Seed.Lab.Description,
			ExpectedOutput: c.Seed.Lab.ExpectedOutput,
		},
	}
}
