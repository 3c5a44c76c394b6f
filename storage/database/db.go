package database

import (
	"database/sql"
	"net/url"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/alertify/core"
	appfs "github.com/trezcool/alertify/fs"
)

const MigrationsDir = "migrations"

func postgresDSN(dbName string, admin bool, conf core.DBConfig) string {
	usr := url.UserPassword(conf.User, conf.Password)
	if admin && conf.AdminUser != "" {
		usr = url.UserPassword(conf.AdminUser, conf.AdminPassword)
	}

	sslMode := "require"
	if conf.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     usr,
		Host:     conf.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

func mysqlDSN(conf core.DBConfig) string {
	c := mysql.NewConfig()
	c.User = conf.User
	c.Passwd = conf.Password
	c.Net = "tcp"
	c.Addr = conf.Address()
	c.DBName = conf.Name
	c.ParseTime = true
	c.Loc = time.UTC
	if !conf.DisableTLS {
		c.TLSConfig = "true"
	}
	return c.FormatDSN()
}

func open(dbName string, admin bool, conf core.DBConfig) (*sql.DB, error) {
	return sql.Open("postgres", postgresDSN(dbName, admin, conf))
}

// Open connects to the alert store.
func Open(conf *core.Config) (*sql.DB, error) {
	return open(conf.Database.Name, false, conf.Database)
}

// OpenHost connects read-only to the LMS database, either postgres or mysql.
func OpenHost(conf *core.Config) (*sql.DB, error) {
	switch conf.Host.Database.Engine {
	case "postgres", "pgsql":
		return open(conf.Host.Database.Name, false, conf.Host.Database)
	case "mysql", "mariadb":
		return sql.Open("mysql", mysqlDSN(conf.Host.Database))
	default:
		return nil, errors.Errorf("unsupported host database engine %q", conf.Host.Database.Engine)
	}
}

// HostDriverName returns the sql driver used for the host database.
func HostDriverName(conf *core.Config) string {
	switch conf.Host.Database.Engine {
	case "mysql", "mariadb":
		return "mysql"
	default:
		return "postgres"
	}
}

// Ping waits for the database to be ready. Waits 100ms longer between each attempt.
func Ping(db *sql.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func exists(db *sql.DB, query, name string) (bool, error) {
	var found bool
	rows, err := db.Query(query, name)
	if err != nil {
		return false, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		if err = rows.Scan(&found); err != nil {
			return false, err
		}
	}
	return found, rows.Err()
}

func createAppUser(db *sql.DB, conf core.DBConfig) error {
	if conf.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname = $1", conf.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		q := "CREATE USER " + pq.QuoteIdentifier(conf.User) + " CREATEDB ENCRYPTED PASSWORD " + pq.QuoteLiteral(conf.Password)
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sql.DB, conf core.DBConfig) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname = $1", conf.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(conf.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the alert store role and database.
func CreateIfNotExist(conf *core.Config) error {
	// connect as admin
	db, err := open("postgres", true, conf.Database)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = Ping(db); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(db, conf.Database); err != nil {
		return errors.Wrap(err, "creating app user")
	}

	// create DB as app user
	appDB, err := open("postgres", false, conf.Database)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()

	if err = createDB(appDB, conf.Database); err != nil {
		return errors.Wrap(err, "creating database")
	}
	return nil
}

// InitMigrations points goose at the embedded migrations.
func InitMigrations() error {
	goose.SetBaseFS(appfs.FS)
	return errors.Wrap(goose.SetDialect("postgres"), "setting migration dialect")
}

func Migrate(db *sql.DB) error {
	if err := InitMigrations(); err != nil {
		return err
	}
	if err := goose.Up(db, MigrationsDir); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
