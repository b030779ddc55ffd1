package export

import (
	"net/url"

	"github.com/go-sql-driver/mysql"
)

// BuildSQLiteDSN returns a go-sqlite3 DSN for a database file.
func BuildSQLiteDSN(path string) string {
	return path + "?_journal_mode=WAL&_busy_timeout=5000"
}

// BuildMSSQLDSN returns a SQL Server connection URL. With an empty user the
// driver falls back to integrated (trusted) authentication.
func BuildMSSQLDSN(server, database, user, password string) string {
	q := url.Values{}
	q.Set("database", database)
	q.Set("app name", "hcai-predict")

	u := &url.URL{
		Scheme:   "sqlserver",
		Host:     server,
		RawQuery: q.Encode(),
	}
	if user != "" {
		u.User = url.UserPassword(user, password)
	}
	return u.String()
}

// BuildMySQLDSN returns a go-sql-driver DSN for a TCP connection.
func BuildMySQLDSN(server, database, user, password string) string {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = server
	cfg.DBName = database
	cfg.ParseTime = true
	return cfg.FormatDSN()
}
