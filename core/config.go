package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultSubject  = "Course not completed yet"
	defaultTemplate = "Hello {userfullname},\n\n" +
		"Our records indicate that you haven't completed the activity '{alink}' in {clink}.\n\n" +
		"Can you please action this at your earliest.\n\n" +
		"Thank you.\n" +
		"Security Officer Team"
)

type (
	DBConfig struct {
		Engine        string
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	HostConfig struct {
		Database    DBConfig
		TablePrefix string
		BaseURL     string
	}

	SMTPConfig struct {
		Host          string
		Port          int
		User          string
		Password      string
		SkipTLSVerify bool
	}

	MailConfig struct {
		Backend        string // console, sendgrid, smtp, ses
		From           string
		SendgridApiKey string
		SMTP           SMTPConfig
		SESRegion      string
	}

	ServerConfig struct {
		Host            string
		OpsHost         string
		ShutdownTimeout time.Duration
	}

	AlertsConfig struct {
		Subject         string
		DefaultTemplate string
		Cadence         time.Duration
		Schedule        string
		Workers         int
		SendWorkers     int
		RunTimeout      time.Duration
	}

	RedisConfig struct {
		Addr     string
		Password string
		DB       int
		LockTTL  time.Duration
	}

	Config struct {
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		Timezone     string
		RollbarToken string
		PushgateURL  string

		Database DBConfig
		Host     HostConfig
		Mail     MailConfig
		Server   ServerConfig
		Alerts   AlertsConfig
		Redis    RedisConfig
	}
)

func (c DBConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DefaultFromEmail returns the support sender used for alert emails.
func (c *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(c.Mail.From)
	if err != nil {
		return mail.Address{Name: c.AppName, Address: c.Mail.From}
	}
	if addr.Name == "" {
		addr.Name = c.AppName
	}
	return *addr
}

// Location returns the time zone used for calendar day comparisons.
// Unknown zones fall back to UTC.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func newViper() (*viper.Viper, string) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Alertify")
	v.SetDefault("build", "develop")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("metrics.pushgatewayURL", "")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "alertify")
	v.SetDefault("database.user", "alertify")
	v.SetDefault("database.password", "alertify")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("host.database.engine", "postgres")
	v.SetDefault("host.database.host", "localhost")
	v.SetDefault("host.database.port", 5432)
	v.SetDefault("host.database.name", "moodle")
	v.SetDefault("host.database.user", "moodle")
	v.SetDefault("host.database.password", "")
	v.SetDefault("host.database.disableTLS", true)
	v.SetDefault("host.tablePrefix", "mdl_")
	v.SetDefault("host.baseURL", "http://localhost")

	v.SetDefault("mail.backend", "console")
	v.SetDefault("mail.from", "noreply@localhost")
	v.SetDefault("mail.sendgridApiKey", "")
	v.SetDefault("mail.smtp.host", "localhost")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("mail.smtp.user", "")
	v.SetDefault("mail.smtp.password", "")
	v.SetDefault("mail.smtp.skipTLSVerify", false)
	v.SetDefault("mail.ses.region", "us-east-1")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.opsHost", "0.0.0.0:4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("alerts.subject", defaultSubject)
	v.SetDefault("alerts.defaultTemplate", defaultTemplate)
	v.SetDefault("alerts.cadence", 4*24*time.Hour)
	v.SetDefault("alerts.schedule", "@daily")
	v.SetDefault("alerts.workers", 4)
	v.SetDefault("alerts.sendWorkers", 8)
	v.SetDefault("alerts.runTimeout", time.Duration(0))

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lockTTL", 10*time.Minute)

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
	dotEnvPath := filepath.Join(configDir(), ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()
	return v, env
}

func configDir() string {
	if dir := os.Getenv("CONFIG_DIR"); dir != "" {
		return dir
	}
	return "config"
}

func dbConfig(v *viper.Viper, prefix string) DBConfig {
	return DBConfig{
		Engine:        v.GetString(prefix + ".engine"),
		Host:          v.GetString(prefix + ".host"),
		Port:          v.GetInt(prefix + ".port"),
		Name:          v.GetString(prefix + ".name"),
		User:          v.GetString(prefix + ".user"),
		Password:      v.GetString(prefix + ".password"),
		AdminUser:     v.GetString(prefix + ".adminUser"),
		AdminPassword: v.GetString(prefix + ".adminPassword"),
		DisableTLS:    v.GetBool(prefix + ".disableTLS"),
	}
}

func NewConfig() *Config {
	v, env := newViper()

	return &Config{
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		Timezone:     v.GetString("timezone"),
		RollbarToken: v.GetString("rollbarToken"),
		PushgateURL:  v.GetString("metrics.pushgatewayURL"),
		Database:     dbConfig(v, "database"),
		Host: HostConfig{
			Database:    dbConfig(v, "host.database"),
			TablePrefix: v.GetString("host.tablePrefix"),
			BaseURL:     strings.TrimRight(v.GetString("host.baseURL"), "/"),
		},
		Mail: MailConfig{
			Backend:        strings.ToLower(v.GetString("mail.backend")),
			From:           v.GetString("mail.from"),
			SendgridApiKey: v.GetString("mail.sendgridApiKey"),
			SMTP: SMTPConfig{
				Host:          v.GetString("mail.smtp.host"),
				Port:          v.GetInt("mail.smtp.port"),
				User:          v.GetString("mail.smtp.user"),
				Password:      v.GetString("mail.smtp.password"),
				SkipTLSVerify: v.GetBool("mail.smtp.skipTLSVerify"),
			},
			SESRegion: v.GetString("mail.ses.region"),
		},
		Server: ServerConfig{
			Host:            v.GetString("server.host"),
			OpsHost:         v.GetString("server.opsHost"),
			ShutdownTimeout: v.GetDuration("server.shutdownTimeout"),
		},
		Alerts: AlertsConfig{
			Subject:         v.GetString("alerts.subject"),
			DefaultTemplate: v.GetString("alerts.defaultTemplate"),
			Cadence:         v.GetDuration("alerts.cadence"),
			Schedule:        v.GetString("alerts.schedule"),
			Workers:         v.GetInt("alerts.workers"),
			SendWorkers:     v.GetInt("alerts.sendWorkers"),
			RunTimeout:      v.GetDuration("alerts.runTimeout"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
			LockTTL:  v.GetDuration("redis.lockTTL"),
		},
	}
}
