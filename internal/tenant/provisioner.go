package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tidecms/tidecms/internal/database"
	"github.com/tidecms/tidecms/internal/models"
	"github.com/tidecms/tidecms/internal/tenantdb"
	"github.com/tidecms/tidecms/pkg/logger"
	"github.com/tidecms/tidecms/pkg/metrics"
)

// Admin performs administrative statements against the database server:
// creating tenant databases and granting the runtime principal access to
// them. Implementations receive names already validated against the tenant
// naming convention.
type Admin interface {
	EnsureDatabase(ctx context.Context, name string) error
	GrantPrivileges(ctx context.Context, name string) error
}

// Provisioner drives a registered tenant through the provisioning pipeline:
// validate target name, create database, grant privileges, apply schema,
// seed defaults, activate. Fatal failures roll the tenant back to suspended.
type Provisioner struct {
	registry *Registry
	router   *tenantdb.Router
	admin    Admin
	log      *zap.Logger
}

// NewProvisioner constructs a Provisioner.
func NewProvisioner(registry *Registry, router *tenantdb.Router, admin Admin) (*Provisioner, error) {
	if registry == nil {
		return nil, errors.New("provisioner: registry is required")
	}
	if router == nil {
		return nil, errors.New("provisioner: router is required")
	}
	if admin == nil {
		return nil, errors.New("provisioner: admin is required")
	}
	return &Provisioner{
		registry: registry,
		router:   router,
		admin:    admin,
		log:      logger.WithModule("provisioner"),
	}, nil
}

// Provision runs the pipeline for one tenant. On fatal failure the registry
// status is rolled back to suspended and the error is returned to the caller;
// since provisioning runs asynchronously that caller can usually only log it.
func (p *Provisioner) Provision(ctx context.Context, tenantID, databaseName string) error {
	ctx = ensureContext(ctx)
	log := logger.WithTenant(p.log, tenantID, databaseName)

	if err := p.run(ctx, databaseName, log); err != nil {
		log.Error("provisioning failed, suspending tenant", zap.Error(err))
		metrics.ProvisioningRuns.WithLabelValues("suspended").Inc()

		if rollbackErr := p.registry.UpdateStatus(ctx, tenantID, models.TenantStatusSuspended); rollbackErr != nil {
			log.Error("status rollback failed", zap.Error(rollbackErr))
		}
		return err
	}

	if err := p.registry.UpdateStatus(ctx, tenantID, models.TenantStatusActive); err != nil {
		metrics.ProvisioningRuns.WithLabelValues("suspended").Inc()
		return fmt.Errorf("provisioner: activate tenant: %w", err)
	}

	log.Info("tenant provisioned")
	metrics.ProvisioningRuns.WithLabelValues("activated").Inc()
	return nil
}

func (p *Provisioner) run(ctx context.Context, databaseName string, log *zap.Logger) error {
	// Step 1: a target outside the naming convention is fatal immediately.
	name, err := tenantdb.AssertTenantDatabase(databaseName)
	if err != nil {
		return err
	}

	// Step 2: database creation is the other fatal step.
	log.Info("creating tenant database")
	if err := p.admin.EnsureDatabase(ctx, name); err != nil {
		return fmt.Errorf("provisioner: create database: %w", err)
	}

	// Step 3: privilege grant is best-effort; operators remediate manually.
	if err := p.admin.GrantPrivileges(ctx, name); err != nil {
		log.Warn("privilege grant failed, manual remediation required", zap.Error(err))
	}

	// Step 4: schema application tolerates per-statement failures.
	log.Info("applying tenant schema")
	err = p.router.WithConnection(ctx, name, func(db *gorm.DB) error {
		return tenantdb.ApplySchema(db, log)
	})
	if err != nil {
		log.Warn("schema application incomplete", zap.Error(err))
	}

	// Step 5: default data is best-effort too.
	err = p.router.WithConnection(ctx, name, func(db *gorm.DB) error {
		return tenantdb.SeedDefaults(db)
	})
	if err != nil {
		log.Warn("default data seeding failed", zap.Error(err))
	}

	return nil
}

// sqlAdmin is the production Admin. It connects to the platform database
// with elevated credentials when configured, falling back to the runtime
// credentials otherwise.
type sqlAdmin struct {
	cfg database.Config
}

// NewSQLAdmin builds the default Admin for the configured database server.
func NewSQLAdmin(cfg database.Config) Admin {
	return &sqlAdmin{cfg: cfg}
}

func (a *sqlAdmin) EnsureDatabase(ctx context.Context, name string) error {
	if _, err := tenantdb.AssertTenantDatabase(name); err != nil {
		return err
	}

	driver := strings.ToLower(strings.TrimSpace(a.cfg.Driver))
	if driver == "" || driver == "sqlite" {
		// SQLite databases spring into existence on first open.
		db, err := database.Open(a.cfg.ForDatabase(name))
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	adminCfg, elevated := a.cfg.WithAdminCredentials()
	err := a.exec(ctx, adminCfg, createDatabaseStatement(driver, name))
	if err == nil || database.IsAlreadyExistsError(err) {
		return nil
	}
	if database.IsPrivilegeError(err) && !elevated {
		return fmt.Errorf("insufficient privileges to create %q with runtime credentials; configure database.admin_user with database-creation rights: %w", name, err)
	}
	return err
}

func (a *sqlAdmin) GrantPrivileges(ctx context.Context, name string) error {
	if _, err := tenantdb.AssertTenantDatabase(name); err != nil {
		return err
	}

	driver := strings.ToLower(strings.TrimSpace(a.cfg.Driver))
	if driver == "" || driver == "sqlite" {
		return nil
	}

	adminCfg, _ := a.cfg.WithAdminCredentials()
	stmt := grantStatement(driver, name, a.cfg.User)
	if stmt == "" {
		return nil
	}
	return a.exec(ctx, adminCfg, stmt)
}

func (a *sqlAdmin) exec(ctx context.Context, cfg database.Config, stmt string) error {
	db, err := database.Open(cfg)
	if err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	return db.WithContext(ctx).Exec(stmt).Error
}

// The database identifier is interpolated only after AssertTenantDatabase has
// pinned it to the tenant naming convention; values never travel this path.
func createDatabaseStatement(driver, name string) string {
	switch driver {
	case "mysql":
		return fmt.Sprintf("CREATE DATABASE `%s` CHARACTER SET utf8mb4", name)
	default:
		return fmt.Sprintf(`CREATE DATABASE "%s"`, name)
	}
}

func grantStatement(driver, name, user string) string {
	user = strings.TrimSpace(user)
	if user == "" {
		return ""
	}

	switch driver {
	case "mysql":
		return fmt.Sprintf("GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'%%'", name, user)
	default:
		return fmt.Sprintf(`GRANT ALL PRIVILEGES ON DATABASE "%s" TO "%s"`, name, user)
	}
}
