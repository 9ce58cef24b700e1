package core

import (
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Store backends
const (
	BackendMemory   = "memory"
	BackendBolt     = "bolt"
	BackendPostgres = "postgres"
	BackendRTDB     = "rtdb"
)

type (
	Config struct {
		AppName      string `validate:"required"`
		Env          string `validate:"required,oneof=DEV TEST QA PROD"`
		Build        string
		Debug        bool
		TestMode     bool
		WorkDir      string
		RollbarToken string

		Server   ServerConfig
		Store    StoreConfig
		Database DatabaseConfig
		Checker  CheckerConfig
		Email    EmailConfig
	}

	ServerConfig struct {
		Host            string `validate:"required"`
		DebugHost       string
		ShutdownTimeout time.Duration `validate:"gt=0"`
	}

	StoreConfig struct {
		Backend  string `validate:"required,oneof=memory bolt postgres rtdb"`
		Root     string `validate:"required,storepath"`
		BoltPath string
		RTDB     RTDBConfig
	}

	RTDBConfig struct {
		URL             string `validate:"omitempty,url"`
		Secret          string
		CredentialsFile string
	}

	DatabaseConfig struct {
		Engine        string `validate:"required"`
		Host          string `validate:"required"`
		Port          string `validate:"required"`
		Name          string `validate:"required"`
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	CheckerConfig struct {
		Location *time.Location
	}

	EmailConfig struct {
		DefaultFrom    mail.Address
		SendgridAPIKey string
		ReportTo       []mail.Address
	}
)

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, dbc.Port)
}

// NewConfig loads the configuration from defaults, the optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed by the `ENV` value, eg. `store.backend` is read from `PROD_STORE_BACKEND` in PROD.
func NewConfig() (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("appName", "Masomo")
	v.SetDefault("build", "dev")
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("store.backend", BackendMemory)
	v.SetDefault("store.root", "classes")
	v.SetDefault("store.boltPath", filepath.Join("data", "masomo.db"))
	v.SetDefault("store.rtdb.url", "")
	v.SetDefault("store.rtdb.secret", "")
	v.SetDefault("store.rtdb.credentialsFile", "")
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "masomo")
	v.SetDefault("database.user", "masomo")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)
	v.SetDefault("checker.location", "UTC")
	v.SetDefault("email.defaultFrom", "Masomo <noreply@localhost>")
	v.SetDefault("email.sendgridApiKey", "")
	v.SetDefault("email.reportTo", "")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	wd := Getwd()
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		AppName:      v.GetString("appName"),
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		WorkDir:      wd,
		RollbarToken: v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			DebugHost:       v.GetString("server.debugHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Store: StoreConfig{
			Backend:  CleanString(v.GetString("store.backend"), true /* lower */),
			Root:     strings.Trim(v.GetString("store.root"), "/"),
			BoltPath: v.GetString("store.boltPath"),
			RTDB: RTDBConfig{
				URL:             strings.TrimRight(v.GetString("store.rtdb.url"), "/"),
				Secret:          v.GetString("store.rtdb.secret"),
				CredentialsFile: v.GetString("store.rtdb.credentialsFile"),
			},
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetString("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
	}

	loc, err := time.LoadLocation(v.GetString("checker.location"))
	if err != nil {
		return nil, NewValidationError(err, FieldError{Field: "checker.location", Error: err.Error()})
	}
	conf.Checker.Location = loc

	from, err := mail.ParseAddress(v.GetString("email.defaultFrom"))
	if err != nil {
		return nil, NewValidationError(err, FieldError{Field: "email.defaultFrom", Error: err.Error()})
	}
	conf.Email.DefaultFrom = *from
	conf.Email.SendgridAPIKey = v.GetString("email.sendgridApiKey")
	if to := CleanString(v.GetString("email.reportTo")); to != "" {
		addrs, err := mail.ParseAddressList(to)
		if err != nil {
			return nil, NewValidationError(err, FieldError{Field: "email.reportTo", Error: err.Error()})
		}
		for _, a := range addrs {
			conf.Email.ReportTo = append(conf.Email.ReportTo, *a)
		}
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// Validate checks struct constraints and cross-field requirements of the store backend.
func (conf *Config) Validate() error {
	if err := Validate.Struct(conf); err != nil {
		var vErrs validator.ValidationErrors
		if errors.As(err, &vErrs) {
			flds := make([]FieldError, 0, len(vErrs))
			for _, vErr := range vErrs {
				flds = append(flds, FieldError{Field: vErr.Namespace(), Error: vErr.Translate(Translator)})
			}
			return NewValidationError(errors.New("invalid configuration"), flds...)
		}
		return err
	}
	switch {
	case conf.Store.Backend == BackendBolt && conf.Store.BoltPath == "":
		return NewValidationError(
			errors.New("invalid configuration"),
			FieldError{Field: "Config.Store.BoltPath", Error: requiredText},
		)
	case conf.Store.Backend == BackendRTDB && conf.Store.RTDB.URL == "":
		return NewValidationError(
			errors.New("invalid configuration"),
			FieldError{Field: "Config.Store.RTDB.URL", Error: requiredText},
		)
	}
	return nil
}
