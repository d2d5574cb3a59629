package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/Strob0t/NoteVault/internal/adapter/postgres"
	"github.com/Strob0t/NoteVault/internal/config"
	"github.com/Strob0t/NoteVault/internal/domain"
	"github.com/Strob0t/NoteVault/internal/domain/tenant"
	"github.com/Strob0t/NoteVault/internal/domain/user"
	"github.com/Strob0t/NoteVault/internal/hashing"
	"github.com/Strob0t/NoteVault/internal/port/database"
	"github.com/Strob0t/NoteVault/internal/service"
)

// demoPassword is the password of every seeded demo account.
const demoPassword = "password" //nolint:gosec // published demo credential

type demoTenant struct {
	name, slug string
	accounts   []demoAccount
}

type demoAccount struct {
	email string
	role  user.Role
}

var demoTenants = []demoTenant{
	{name: "Acme", slug: "acme", accounts: []demoAccount{
		{email: "admin@acme.test", role: user.RoleAdmin},
		{email: "user@acme.test", role: user.RoleMember},
	}},
	{name: "Globex", slug: "globex", accounts: []demoAccount{
		{email: "admin@globex.test", role: user.RoleAdmin},
		{email: "user@globex.test", role: user.RoleMember},
	}},
}

// runAdmin dispatches admin subcommands.
func runAdmin(args []string) error {
	if len(args) == 0 || args[0] == "help" || args[0] == "--help" {
		printAdminHelp()
		return nil
	}

	switch args[0] {
	case "seed":
		return runAdminSeed(args[1:])
	case "create-tenant":
		return runAdminCreateTenant(args[1:])
	case "create-user":
		return runAdminCreateUser(args[1:])
	case "reset-password":
		return runAdminResetPassword(args[1:])
	case "deactivate-user":
		return runAdminDeactivateUser(args[1:])
	case "list-users":
		return runAdminListUsers(args[1:])
	case "migrate":
		return runAdminMigrate(args[1:])
	default:
		printAdminHelp()
		return fmt.Errorf("unknown admin command: %s", args[0])
	}
}

func printAdminHelp() {
	fmt.Fprintf(os.Stderr, `Usage: notevault admin <command> [options]

Commands:
  seed              Create the Acme and Globex demo tenants and accounts
  create-tenant     Create a tenant on the free plan
  create-user       Create an account in a tenant
  reset-password    Reset an account's password
  deactivate-user   Deactivate an account
  list-users        List accounts, optionally for one tenant
  migrate           Apply, roll back or report schema migrations
  help              Show this help message

Examples:
  notevault admin seed
  notevault admin create-tenant --name "Initech" --slug initech
  notevault admin create-user --tenant initech --email boss@initech.test --admin
  notevault admin reset-password --email user@acme.test
  notevault admin deactivate-user --email user@acme.test
  notevault admin list-users --tenant acme
  notevault admin migrate --down 1
`)
}

type adminDeps struct {
	store   database.Store
	tenants *service.TenantService
	auth    *service.AuthService
}

func loadAdminDeps(ctx context.Context) (*adminDeps, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Storage.Driver != "postgres" {
		return nil, nil, fmt.Errorf("admin commands need postgres storage, got %q", cfg.Storage.Driver)
	}

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if _, err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("migrations: %w", err)
	}

	store := postgres.NewStore(pool)
	hasher := hashing.NewPool(cfg.Auth.HashConcurrency, cfg.Auth.BcryptCost)
	events := service.NewEventPublisher(nil)
	deps := &adminDeps{
		store:   store,
		tenants: service.NewTenantService(store, service.NewQuotaService(store)),
		auth:    service.NewAuthService(store, service.NewSessionIssuer(&cfg.Auth), events, hasher),
	}
	return deps, pool.Close, nil
}

// seedDemo creates the demo tenants and accounts. Existing tenants and
// accounts are left untouched so the command can be re-run.
func seedDemo(ctx context.Context, tenants *service.TenantService, auth *service.AuthService) error {
	for _, dt := range demoTenants {
		t, err := tenants.Create(ctx, tenant.CreateRequest{Name: dt.name, Slug: dt.slug})
		if errors.Is(err, domain.ErrConflict) {
			t, err = tenants.GetBySlug(ctx, dt.slug)
		}
		if err != nil {
			return fmt.Errorf("tenant %s: %w", dt.slug, err)
		}

		scope := tenant.NewScope(t.ID)
		for _, da := range dt.accounts {
			_, err := auth.CreateAccount(ctx, scope, user.CreateRequest{
				Email:    da.email,
				Password: demoPassword,
				Role:     da.role,
			})
			switch {
			case errors.Is(err, domain.ErrConflict):
				slog.Info("demo account exists", "email", da.email)
			case err != nil:
				return fmt.Errorf("account %s: %w", da.email, err)
			default:
				slog.Info("demo account created", "tenant", dt.slug, "email", da.email, "role", da.role)
			}
		}
	}
	return nil
}

func runAdminSeed(args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	deps, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := seedDemo(ctx, deps.tenants, deps.auth); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Demo data ready. Every account uses the password %q.\n", demoPassword)
	return nil
}

func runAdminCreateTenant(args []string) error {
	fs := flag.NewFlagSet("create-tenant", flag.ContinueOnError)
	name := fs.String("name", "", "tenant display name (required)")
	slug := fs.String("slug", "", "tenant slug (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	deps, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	t, err := deps.tenants.Create(ctx, tenant.CreateRequest{Name: *name, Slug: *slug})
	if err != nil {
		return fmt.Errorf("create tenant: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Tenant created: %s (id=%s, plan=%s)\n", t.Slug, t.ID, t.Subscription.Plan)
	return nil
}

func runAdminCreateUser(args []string) error {
	fs := flag.NewFlagSet("create-user", flag.ContinueOnError)
	slug := fs.String("tenant", "", "tenant slug (required)")
	email := fs.String("email", "", "account email address (required)")
	password := fs.String("password", "", "password (prompted if not provided)") //nolint:gosec // CLI flag
	admin := fs.Bool("admin", false, "grant admin role")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *slug == "" {
		return fmt.Errorf("--tenant is required")
	}
	if *email == "" {
		return fmt.Errorf("--email is required")
	}

	pass, err := passwordOrPrompt(*password, "Password: ")
	if err != nil {
		return err
	}

	role := user.RoleMember
	if *admin {
		role = user.RoleAdmin
	}

	ctx := context.Background()
	deps, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	t, err := deps.tenants.GetBySlug(ctx, *slug)
	if err != nil {
		return fmt.Errorf("tenant %s: %w", *slug, err)
	}
	u, err := deps.auth.CreateAccount(ctx, tenant.NewScope(t.ID), user.CreateRequest{
		Email:    *email,
		Password: pass,
		Role:     role,
	})
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	fmt.Fprintf(os.Stderr, "User created: %s (id=%s, tenant=%s, role=%s)\n", u.Email, u.ID, t.Slug, u.Role)
	return nil
}

func runAdminResetPassword(args []string) error {
	fs := flag.NewFlagSet("reset-password", flag.ContinueOnError)
	email := fs.String("email", "", "account email address (required)")
	password := fs.String("password", "", "new password (prompted if not provided)") //nolint:gosec // CLI flag
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		return fmt.Errorf("--email is required")
	}

	newPass, err := passwordOrPrompt(*password, "New password: ")
	if err != nil {
		return err
	}
	if err := user.ValidatePassword(newPass); err != nil {
		return err
	}

	ctx := context.Background()
	deps, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	u, err := deps.store.GetUserByEmail(ctx, user.NormalizeEmail(*email))
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if err := deps.auth.SetPassword(ctx, tenant.NewScope(u.TenantID), u.ID, newPass); err != nil {
		return fmt.Errorf("reset password: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Password reset successfully for %s\n", u.Email)
	return nil
}

func runAdminDeactivateUser(args []string) error {
	fs := flag.NewFlagSet("deactivate-user", flag.ContinueOnError)
	email := fs.String("email", "", "account email address (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *email == "" {
		return fmt.Errorf("--email is required")
	}

	ctx := context.Background()
	deps, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	u, err := deps.store.GetUserByEmail(ctx, user.NormalizeEmail(*email))
	if err != nil {
		return fmt.Errorf("find user: %w", err)
	}
	if err := deps.auth.SetActive(ctx, tenant.NewScope(u.TenantID), u.ID, false); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "User deactivated: %s\n", u.Email)
	return nil
}

func runAdminListUsers(args []string) error {
	fs := flag.NewFlagSet("list-users", flag.ContinueOnError)
	slug := fs.String("tenant", "", "only list accounts of this tenant slug")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	deps, cleanup, err := loadAdminDeps(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	var tenants []tenant.Tenant
	if *slug != "" {
		t, err := deps.tenants.GetBySlug(ctx, *slug)
		if err != nil {
			return fmt.Errorf("tenant %s: %w", *slug, err)
		}
		tenants = []tenant.Tenant{*t}
	} else {
		tenants, err = deps.tenants.List(ctx)
		if err != nil {
			return fmt.Errorf("list tenants: %w", err)
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TENANT\tID\tEMAIL\tROLE\tACTIVE")
	var n int
	for i := range tenants {
		users, err := deps.store.ListUsers(ctx, tenant.NewScope(tenants[i].ID))
		if err != nil {
			return fmt.Errorf("list users of %s: %w", tenants[i].Slug, err)
		}
		for j := range users {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n",
				tenants[i].Slug, users[j].ID, users[j].Email, users[j].Role, users[j].Active)
			n++
		}
	}
	if n == 0 {
		fmt.Println("No users found.")
		return nil
	}
	return w.Flush()
}

func runAdminMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	down := fs.Int("down", 0, "roll back this many migrations instead of applying")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	if *down > 0 {
		if err := postgres.RollbackMigrations(ctx, pool, *down); err != nil {
			return err
		}
	} else {
		applied, err := postgres.RunMigrations(ctx, pool)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Applied %d migration(s)\n", applied)
	}

	version, err := postgres.MigrationVersion(ctx, pool)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Schema version: %d\n", version)
	return nil
}

// passwordOrPrompt returns flagValue or, when empty, asks twice on the terminal.
func passwordOrPrompt(flagValue, prompt string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	pass, err := promptPassword(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	confirm, err := promptPassword("Confirm password: ")
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if pass != confirm {
		return "", fmt.Errorf("passwords do not match")
	}
	return pass, nil
}

// promptPassword reads a password from the terminal without echoing.
func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(syscall.Stdin)) //nolint:unconvert // int conversion needed on some platforms
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
