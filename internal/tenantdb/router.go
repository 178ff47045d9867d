package tenantdb

import (
	"context"
	"errors"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/tidecms/tidecms/internal/database"
	"github.com/tidecms/tidecms/pkg/metrics"
)

// Opener opens a connection scoped to the named database and returns the
// handle together with its release function. Implementations must make the
// release function safe to call exactly once.
type Opener interface {
	Open(database string) (*gorm.DB, func() error, error)
}

// configOpener opens real connections by substituting the target database
// into the base connection configuration.
type configOpener struct {
	cfg database.Config
}

func (o configOpener) Open(name string) (*gorm.DB, func() error, error) {
	db, err := database.Open(o.cfg.ForDatabase(name))
	if err != nil {
		return nil, nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return db, sqlDB.Close, nil
}

// Router hands out ephemeral, per-call connections to isolated tenant
// databases. Connections are never pooled or shared across calls; each
// invocation owns its connection for the duration of the unit of work only.
type Router struct {
	opener Opener
}

// NewRouter constructs a Router that derives tenant connections from the
// platform database configuration.
func NewRouter(cfg database.Config) *Router {
	return &Router{opener: configOpener{cfg: cfg}}
}

// NewRouterWithOpener constructs a Router with a custom Opener, primarily for
// tests and for the provisioner's elevated-credential path.
func NewRouterWithOpener(opener Opener) (*Router, error) {
	if opener == nil {
		return nil, errors.New("tenantdb: opener is required")
	}
	return &Router{opener: opener}, nil
}

// WithConnection opens a connection scoped to the named database, runs fn
// against it, and releases the connection on every exit path: normal return,
// error from fn, or panic. The unit of work's error is surfaced unmodified;
// no retries are performed here.
func (r *Router) WithConnection(ctx context.Context, name string, fn func(*gorm.DB) error) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return errors.New("tenantdb: unit of work is required")
	}

	db, release, openErr := r.opener.Open(name)
	if openErr != nil {
		metrics.TenantConnections.WithLabelValues("open_error").Inc()
		return openErr
	}
	metrics.TenantConnections.WithLabelValues("opened").Inc()

	defer func() {
		if cerr := release(); cerr != nil {
			err = multierr.Append(err, cerr)
		}
	}()

	return fn(db.WithContext(ctx))
}
