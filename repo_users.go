package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sortable columns for user listings.
var userSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"name":      "name",
	"email":     "email",
	"status":    "status",
	"role":      "role",
	"lastLogin": "last_login",
}

// UserFilter selects and orders a page of users.
type UserFilter struct {
	Search    string
	Status    UserStatus
	Role      UserRole
	SortBy    string
	SortOrder string
	Limit     int
	Offset    int
}

// UserCounts summarizes the users table.
type UserCounts struct {
	Total    int `json:"totalUsers"`
	Active   int `json:"activeUsers"`
	Banned   int `json:"bannedUsers"`
	Inactive int `json:"inactiveUsers"`
	Admins   int `json:"totalAdmins"`
	Recent   int `json:"recentUsers"`
}

type Users interface {
	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error)
	GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error)
	EmailTaken(ctx context.Context, email string, exclude uuid.UUID) (bool, error)
	EmailTakenTx(ctx context.Context, tx bun.IDB, email string, exclude uuid.UUID) (bool, error)
	List(ctx context.Context, filter UserFilter) ([]*User, int, error)
	Counts(ctx context.Context, recentSince time.Time) (UserCounts, error)
	AccountStatus(ctx context.Context, userID string) (string, error)

	UpdateProfile(ctx context.Context, user *User, columns ...string) (*User, error)
	UpdateProfileTx(ctx context.Context, tx bun.IDB, user *User, columns ...string) (*User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error)
	UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error)
	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
	Remove(ctx context.Context, id uuid.UUID) error
}

type users struct {
	repo repository.Repository[*User]
	db   *bun.DB
	now  func() time.Time
}

var _ Users = (*users)(nil)

type UsersOption func(*users)

// WithUsersClock overrides the clock used for timestamps.
func WithUsersClock(clock func() time.Time) UsersOption {
	return func(u *users) {
		if clock != nil {
			u.now = clock
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	repoUsers := &users{
		repo: repo,
		db:   db,
		now:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}

	return repoUsers
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	prepareUserDefaults(user)
	return a.repo.CreateTx(ctx, tx, user)
}

func (a *users) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return a.FindByIDTx(ctx, a.db, id)
}

func (a *users) FindByIDTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return record, nil
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

// GetByIdentifierTx looks a user up by email, or by id when identifier is a UUID.
func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	column, value := "email", any(normalizeEmail(identifier))
	if id, err := uuid.Parse(strings.TrimSpace(identifier)); err == nil {
		column, value = "id", id
	}

	record := &User{}
	q := tx.NewSelect().Model(record)
	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}

	return record, nil
}

func (a *users) EmailTaken(ctx context.Context, email string, exclude uuid.UUID) (bool, error) {
	return a.EmailTakenTx(ctx, a.db, email, exclude)
}

func (a *users) EmailTakenTx(ctx context.Context, tx bun.IDB, email string, exclude uuid.UUID) (bool, error) {
	q := tx.NewSelect().
		Model((*User)(nil)).
		Where("?TableAlias.email = ?", normalizeEmail(email))
	if exclude != uuid.Nil {
		q = q.Where("?TableAlias.id != ?", exclude)
	}
	return q.Exists(ctx)
}

func (a *users) List(ctx context.Context, filter UserFilter) ([]*User, int, error) {
	records := []*User{}
	q := a.db.NewSelect().Model(&records)
	for _, c := range filter.criteria() {
		q.Apply(c)
	}

	total, err := q.
		Limit(filter.Limit).
		Offset(filter.Offset).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func (f UserFilter) criteria() []repository.SelectCriteria {
	criteria := []repository.SelectCriteria{}

	if search := strings.TrimSpace(f.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
				return q.
					Where("LOWER(?TableAlias.name) LIKE ?", pattern).
					WhereOr("LOWER(?TableAlias.email) LIKE ?", pattern)
			})
		})
	}

	if f.Status != "" {
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.status = ?", f.Status)
		})
	}

	if f.Role != "" {
		criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.role = ?", f.Role)
		})
	}

	column, ok := userSortColumns[f.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		direction = "ASC"
	}
	criteria = append(criteria, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr("?TableAlias.? "+direction, bun.Ident(column))
	})

	return criteria
}

func (a *users) Counts(ctx context.Context, recentSince time.Time) (UserCounts, error) {
	var counts UserCounts

	queries := []struct {
		target *int
		apply  func(q *bun.SelectQuery) *bun.SelectQuery
	}{
		{&counts.Total, func(q *bun.SelectQuery) *bun.SelectQuery { return q.Where("role = ?", RoleUser) }},
		{&counts.Active, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("role = ?", RoleUser).Where("status = ?", UserStatusActive)
		}},
		{&counts.Banned, func(q *bun.SelectQuery) *bun.SelectQuery { return q.Where("status = ?", UserStatusBanned) }},
		{&counts.Inactive, func(q *bun.SelectQuery) *bun.SelectQuery { return q.Where("status = ?", UserStatusInactive) }},
		{&counts.Admins, func(q *bun.SelectQuery) *bun.SelectQuery { return q.Where("role = ?", RoleAdmin) }},
		{&counts.Recent, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("role = ?", RoleUser).Where("created_at >= ?", recentSince)
		}},
	}

	for _, query := range queries {
		n, err := a.db.NewSelect().Model((*User)(nil)).Apply(query.apply).Count(ctx)
		if err != nil {
			return UserCounts{}, err
		}
		*query.target = n
	}

	return counts, nil
}

// AccountStatus returns the durable status of userID.
func (a *users) AccountStatus(ctx context.Context, userID string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil {
		return "", ErrIdentityNotFound
	}

	var status string
	err = a.db.NewSelect().
		Model((*User)(nil)).
		Column("status").
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx, &status)
	if err != nil {
		if isRecordNotFound(err) {
			return "", ErrIdentityNotFound
		}
		return "", err
	}
	return status, nil
}

func (a *users) UpdateProfile(ctx context.Context, user *User, columns ...string) (*User, error) {
	return a.UpdateProfileTx(ctx, a.db, user, columns...)
}

// UpdateProfileTx writes the given columns of user. updated_at is always
// written.
func (a *users) UpdateProfileTx(ctx context.Context, tx bun.IDB, user *User, columns ...string) (*User, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, ErrIdentityNotFound
	}
	user.Email = normalizeEmail(user.Email)
	user.UpdatedAt = a.now().UTC()

	res, err := tx.NewUpdate().
		Model(user).
		Column(append(columns, "updated_at")...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrIdentityNotFound
	}
	return a.FindByIDTx(ctx, tx, user.ID)
}

// StatusUpdateOption adjusts the columns written with a status change.
type StatusUpdateOption func(*statusUpdate)

type statusUpdate struct {
	banReason *string
	bannedAt  *time.Time
	bannedBy  *string
	clearBan  bool
}

// WithBanDetails records who banned the account, when and why.
func WithBanDetails(reason, bannedBy string, at time.Time) StatusUpdateOption {
	return func(u *statusUpdate) {
		u.banReason = &reason
		u.bannedBy = &bannedBy
		u.bannedAt = &at
	}
}

// WithClearedBan removes the ban details.
func WithClearedBan() StatusUpdateOption {
	return func(u *statusUpdate) {
		u.clearBan = true
	}
}

func (a *users) UpdateStatus(ctx context.Context, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error) {
	return a.UpdateStatusTx(ctx, a.db, id, status, opts...)
}

func (a *users) UpdateStatusTx(ctx context.Context, tx bun.IDB, id uuid.UUID, status UserStatus, opts ...StatusUpdateOption) (*User, error) {
	update := &statusUpdate{}
	for _, opt := range opts {
		if opt != nil {
			opt(update)
		}
	}

	q := tx.NewUpdate().
		Model((*User)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", a.now().UTC()).
		Where("id = ?", id)

	switch {
	case update.clearBan:
		q = q.Set("ban_reason = NULL").Set("banned_at = NULL").Set("banned_by = NULL")
	case update.bannedAt != nil:
		q = q.Set("ban_reason = ?", *update.banReason).
			Set("banned_at = ?", update.bannedAt.UTC()).
			Set("banned_by = ?", *update.bannedBy)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrIdentityNotFound
	}

	return a.FindByIDTx(ctx, tx, id)
}

func (a *users) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	res, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", passwordHash).
		Set("updated_at = ?", a.now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	if user == nil {
		return ErrIdentityNotFound
	}
	loggedInAt := a.now().UTC()
	_, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("last_login = ?", loggedInAt).
		Where("id = ?", user.ID).
		Exec(ctx)
	if err != nil {
		return err
	}
	user.LastLogin = &loggedInAt
	return nil
}

func (a *users) Remove(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewDelete().
		Model((*User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrIdentityNotFound
	}
	return nil
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err)
}
