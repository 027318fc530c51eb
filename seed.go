package accounts

import (
	"context"

	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

const DefaultAdminName = "Administrator"

// SeedOptions configures Seed.
type SeedOptions struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
	// SampleUsers adds demo accounts, one of them banned.
	SampleUsers bool
	BcryptCost  int
}

type seedUser struct {
	name     string
	email    string
	password string
	role     UserRole
	status   UserStatus
}

var sampleUsers = []seedUser{
	{"John Doe", "john@example.com", "password123", RoleUser, UserStatusActive},
	{"Jane Smith", "jane@example.com", "password123", RoleUser, UserStatusActive},
	{"Bob Johnson", "bob@example.com", "password123", RoleUser, UserStatusBanned},
}

// Seed creates the default administrator and, optionally, sample accounts.
// Existing accounts are left untouched. The administrator id is derived
// from its email so every node seeds the same record.
func Seed(ctx context.Context, users Users, opts SeedOptions, logger Logger) error {
	logger = ResolveLogger(logger)

	if opts.AdminEmail != "" {
		name := opts.AdminName
		if name == "" {
			name = DefaultAdminName
		}
		admin := seedUser{name, opts.AdminEmail, opts.AdminPassword, RoleAdmin, UserStatusActive}
		if err := seedOne(ctx, users, admin, opts.BcryptCost, true, logger); err != nil {
			return err
		}
	}

	if !opts.SampleUsers {
		return nil
	}
	for _, sample := range sampleUsers {
		if err := seedOne(ctx, users, sample, opts.BcryptCost, false, logger); err != nil {
			return err
		}
	}
	return nil
}

func seedOne(ctx context.Context, users Users, record seedUser, cost int, deterministicID bool, logger Logger) error {
	taken, err := users.EmailTaken(ctx, record.email, uuid.Nil)
	if err != nil {
		return err
	}
	if taken {
		logger.Debug("seed: account already exists", "email", record.email)
		return nil
	}

	if cost == 0 {
		cost = passwordHashCost()
	}
	hash, err := HashPasswordWithCost(record.password, cost)
	if err != nil {
		return err
	}

	user := &User{
		Name:         record.name,
		Email:        record.email,
		PasswordHash: hash,
		Role:         record.role,
		Status:       record.status,
	}
	if deterministicID {
		if id, err := hashid.NewUUID(normalizeEmail(record.email)); err == nil {
			user.ID = id
		}
	}
	if record.status == UserStatusBanned {
		user.BanReason = DefaultBanReason
	}

	if _, err := users.Register(ctx, user); err != nil {
		return err
	}
	logger.Info("seed: account created", "email", user.Email, "role", user.Role)
	return nil
}
