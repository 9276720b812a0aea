package main

import (
	"fmt"
	"time"

	"github.com/dlintw/goconf"
	"github.com/phayes/errors"
)

var (
	ErrConfigNotFound = errors.New("Could not find config file. Try using the --config=\"<path-to-config-file>\" option to specify a config file.")
)

type Config struct {
	configFilePath string
	database       struct {
		host               string
		port               int
		user               string
		password           string
		dbname             string
		sslmode            string
		maxIdleConnections int
	}
	storeURL    string
	postprocURL string
	timeout     time.Duration
	keyBits     int
}

// NewConfig reads the config file at filepath.
func NewConfig(filepath string) (*Config, error) {
	config := Config{
		configFilePath: filepath,
	}

	c, err := goconf.ReadConfigFile(filepath)
	if err != nil {
		return nil, errors.Wrap(err, ErrConfigNotFound)
	}

	// Parse database config options
	config.database.host, err = c.GetString("database", "host")
	if err != nil {
		return nil, err
	}
	config.database.port, err = c.GetInt("database", "port")
	if err != nil {
		return nil, err
	}
	config.database.user, err = c.GetString("database", "user")
	if err != nil {
		return nil, err
	}
	config.database.password, err = c.GetString("database", "password")
	if err != nil {
		return nil, err
	}
	config.database.dbname, err = c.GetString("database", "dbname")
	if err != nil {
		return nil, err
	}
	config.database.sslmode, err = c.GetString("database", "sslmode")
	if err != nil {
		return nil, err
	}
	// For max_idle_connections missing translates to -1
	if c.HasOption("database", "max_idle_connections") {
		config.database.maxIdleConnections, err = c.GetInt("database", "max_idle_connections")
		if err != nil {
			return nil, err
		}
	} else {
		config.database.maxIdleConnections = -1
	}

	// Parse service base URLs
	config.storeURL, err = c.GetString("store", "url")
	if err != nil {
		return nil, err
	}
	config.postprocURL, err = c.GetString("postproc", "url")
	if err != nil {
		return nil, err
	}

	// Per-call timeout for remote services, in seconds. 0 keeps the
	// client default.
	if c.HasOption("", "timeout") {
		seconds, err := c.GetInt("", "timeout")
		if err != nil {
			return nil, err
		}
		config.timeout = time.Duration(seconds) * time.Second
	}

	// Key size for the key-generation ceremony. All authorities should
	// use the same number of bits.
	if c.HasOption("", "keybits") {
		config.keyBits, err = c.GetInt("", "keybits")
		if err != nil {
			return nil, err
		}
	}

	return &config, nil
}

func (config *Config) databaseConnectionString() (connection string) {
	if config.database.host != "" {
		connection = fmt.Sprint(connection, "host=", config.database.host, " ")
	}
	if config.database.port != 0 {
		connection = fmt.Sprint(connection, "port=", config.database.port, " ")
	}
	if config.database.user != "" {
		connection = fmt.Sprint(connection, "user=", config.database.user, " ")
	}
	if config.database.password != "" {
		connection = fmt.Sprint(connection, "password=", config.database.password, " ")
	}
	if config.database.dbname != "" {
		connection = fmt.Sprint(connection, "dbname=", config.database.dbname, " ")
	}
	if config.database.sslmode != "" {
		connection = fmt.Sprint(connection, "sslmode=", config.database.sslmode)
	}
	return
}
