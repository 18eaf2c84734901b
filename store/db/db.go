// Package db selects the concrete store driver.
package db

import (
	"github.com/pkg/errors"

	"github.com/hrygo/kulturbot/internal/profile"
	"github.com/hrygo/kulturbot/store"
	"github.com/hrygo/kulturbot/store/db/sqlite"
)

// NewDBDriver creates a new DB driver based on the configured profile.
func NewDBDriver(profile *profile.Profile) (store.Driver, error) {
	switch profile.Driver {
	case "sqlite":
		return sqlite.NewDB(profile)
	default:
		return nil, errors.Errorf("unknown db driver %q", profile.Driver)
	}
}
