package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "TRANSLATOR"

type Config struct {
	Server   Server   `yaml:"server" mapstructure:"server"`
	Stream   Stream   `yaml:"stream" mapstructure:"stream"`
	Download Download `yaml:"download" mapstructure:"download"`
	Status   Status   `yaml:"status" mapstructure:"status"`
	Postgres Postgres `yaml:"postgres" mapstructure:"postgres"`
	RabbitMQ RabbitMQ `yaml:"rabbitmq" mapstructure:"rabbitmq"`
	Minio    Minio    `yaml:"minio" mapstructure:"minio"`
	Email    Email    `yaml:"email" mapstructure:"email"`
}

// Server is the translation web application.
type Server struct {
	URL      string        `yaml:"url" mapstructure:"url"`
	Username string        `yaml:"username" mapstructure:"username"`
	Password string        `yaml:"password" mapstructure:"password"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

type Stream struct {
	// 0 reconnects forever
	TitlesMaxAttempts       int           `yaml:"titles_max_attempts" mapstructure:"titles_max_attempts"`
	DescriptionsMaxAttempts int           `yaml:"descriptions_max_attempts" mapstructure:"descriptions_max_attempts"`
	RetryDelay              time.Duration `yaml:"retry_delay" mapstructure:"retry_delay"`
}

type Download struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	PerLanguage bool   `yaml:"per_language" mapstructure:"per_language"`
}

// Status is the local progress endpoint; empty Port disables it.
type Status struct {
	Port string `yaml:"port" mapstructure:"port"`
}

type Postgres struct {
	Host       string `yaml:"host" mapstructure:"host"`
	Port       int    `yaml:"port" mapstructure:"port"`
	Username   string `yaml:"username" mapstructure:"username"`
	Password   string `yaml:"password" mapstructure:"password"`
	Database   string `yaml:"database" mapstructure:"database"`
	AutoCreate bool   `yaml:"autocreate" mapstructure:"autocreate"`
}

func (p Postgres) Enabled() bool { return p.Host != "" }

func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		p.Host, p.Port, p.Username, p.Password, p.Database)
}

type RabbitMQ struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Topic    string `yaml:"topic" mapstructure:"topic"` //queue progress events are published to
}

func (r RabbitMQ) Enabled() bool { return r.Host != "" }

func (r RabbitMQ) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d/", r.Username, r.Password, r.Host, r.Port)
}

type Minio struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Secure    bool   `yaml:"secure" mapstructure:"secure"`
}

func (m Minio) Enabled() bool { return m.Endpoint != "" && m.Bucket != "" }

// Email is the MailerSend account used for completion notices.
type Email struct {
	APIKey string `yaml:"api_key" mapstructure:"api_key"`
	From   string `yaml:"from" mapstructure:"from"`
	To     string `yaml:"to" mapstructure:"to"`
}

func (e Email) Enabled() bool { return e.APIKey != "" && e.To != "" }

var ErrMissingServerURL = errors.New("server.url is required")

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.url", "")
	v.SetDefault("server.username", "")
	v.SetDefault("server.password", "")
	v.SetDefault("server.timeout", 2*time.Minute)

	v.SetDefault("stream.titles_max_attempts", 3)
	v.SetDefault("stream.descriptions_max_attempts", 0)
	v.SetDefault("stream.retry_delay", 3*time.Second)

	v.SetDefault("download.dir", "./downloads")
	v.SetDefault("download.per_language", false)

	v.SetDefault("status.port", "")

	v.SetDefault("postgres.host", "")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.username", "")
	v.SetDefault("postgres.password", "")
	v.SetDefault("postgres.database", "")
	v.SetDefault("postgres.autocreate", false)

	v.SetDefault("rabbitmq.host", "")
	v.SetDefault("rabbitmq.port", 5672)
	v.SetDefault("rabbitmq.username", "guest")
	v.SetDefault("rabbitmq.password", "guest")
	v.SetDefault("rabbitmq.topic", "translation_progress")

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key", "")
	v.SetDefault("minio.secret_key", "")
	v.SetDefault("minio.bucket", "")
	v.SetDefault("minio.secure", true)

	v.SetDefault("email.api_key", "")
	v.SetDefault("email.from", "")
	v.SetDefault("email.to", "")
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"url":          "server.url",
	"username":     "server.username",
	"password":     "server.password",
	"download-dir": "download.dir",
	"status-port":  "status.port",
}

// RegisterFlags adds the flags that override config keys.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String("url", "", "base URL of the translation server")
	flags.String("username", "", "login user name")
	flags.String("password", "", "login password")
	flags.String("download-dir", "", "directory translated files are saved to")
	flags.String("status-port", "", "serve progress on this port, e.g. :8090")
}

// InitConfig reads filename (YAML), then TRANSLATOR_* environment variables,
// then any flags that were set. A missing file is not an error.
func InitConfig(filename string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if filename != "" {
		v.SetConfigFile(filename)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", filename, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return ErrMissingServerURL
	}
	return nil
}
