package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPath = "config.yaml"
	DefaultURL  = "sqlite:///migra.db"
	EnvURL      = "DATABASE_URL"

	defaultDriver = "mysql+pymysql"
)

// Source tells where a resolved database URL came from.
type Source string

const (
	SourceFlag     Source = "flag"
	SourceFile     Source = "file"
	SourceEnv      Source = "env"
	SourceFallback Source = "fallback"
)

type Database struct {
	URL      string `yaml:"url"`
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host" validate:"omitempty,hostname_rfc1123|ip"`
	Port     int    `yaml:"port" validate:"omitempty,min=1,max=65535"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

func (d Database) empty() bool {
	return strings.TrimSpace(d.URL) == "" &&
		d.Driver == "" && d.Host == "" && d.User == "" && d.Password == "" && d.Name == "" && d.Port == 0
}

// Config is the part of the application config file migra reads. Both
// "database" and "db" are accepted as the section name; "database" wins.
type Config struct {
	Database Database `yaml:"database"`
	DB       Database `yaml:"db"`

	// dir is the directory of the loaded file; relative sqlite names resolve against it.
	dir string
}

// Load reads the config file at path. A missing file yields an empty config.
func Load(path string) (Config, error) {
	var cfg Config
	cfg.dir = filepath.Dir(path)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Default().Debug("no config file", "path", path)
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	validate := validator.New()
	if err := validate.Struct(cfg.section()); err != nil {
		return cfg, fmt.Errorf("invalid database section in %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) section() Database {
	if !c.Database.empty() {
		return c.Database
	}
	return c.DB
}

// URL builds the database URL described by the file, or "" if the file does
// not describe one.
func (c Config) URL() string {
	db := c.section()
	if u := strings.TrimSpace(db.URL); u != "" {
		return u
	}
	if db.Driver == "" && db.Host == "" && db.User == "" && db.Password == "" && db.Name == "" {
		return ""
	}

	driver := strings.TrimSpace(db.Driver)
	if driver == "" {
		driver = defaultDriver
	}

	if strings.HasPrefix(driver, "sqlite") {
		if db.Name == "" {
			return "sqlite://"
		}
		name := db.Name
		if !filepath.IsAbs(name) {
			name = filepath.Join(c.dir, name)
		}
		return "sqlite:///" + filepath.ToSlash(name)
	}

	host := db.Host
	if host == "" {
		host = "localhost"
	}
	if db.Port != 0 {
		host = net.JoinHostPort(host, strconv.Itoa(db.Port))
	}

	u := url.URL{Scheme: driver, Host: host}
	if db.User != "" {
		if db.Password != "" {
			u.User = url.UserPassword(db.User, db.Password)
		} else {
			u.User = url.User(db.User)
		}
	}
	if db.Name != "" {
		u.Path = "/" + db.Name
	}
	return u.String()
}

// ResolveURL picks the database URL: an explicit value first, then the
// config file at path, then $DATABASE_URL, then the fallback.
func ResolveURL(explicit, path string) (string, Source, error) {
	if u := strings.TrimSpace(explicit); u != "" {
		return u, SourceFlag, nil
	}

	if path == "" {
		path = DefaultPath
	}
	cfg, err := Load(path)
	if err != nil {
		return "", "", err
	}
	if u := cfg.URL(); u != "" {
		return u, SourceFile, nil
	}

	if u := strings.TrimSpace(os.Getenv(EnvURL)); u != "" {
		return u, SourceEnv, nil
	}
	return DefaultURL, SourceFallback, nil
}
