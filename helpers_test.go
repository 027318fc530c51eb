package accounts_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	"github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/persistence"
	"github.com/goliatone/go-accounts/realtime"
)

const testPassword = "password123"

type testConfig struct {
	expiration time.Duration
}

func (testConfig) GetUserSigningKey() string  { return "test-user-secret" }
func (testConfig) GetAdminSigningKey() string { return "test-admin-secret" }
func (testConfig) GetIssuer() string          { return "accounts-test" }
func (testConfig) GetBcryptCost() int         { return bcrypt.MinCost }
func (c testConfig) GetTokenExpiration() time.Duration {
	if c.expiration == 0 {
		return time.Hour
	}
	return c.expiration
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	db, err := persistence.Open(ctx, persistence.Options{
		Driver: persistence.DriverSQLite,
		DSN:    "file:" + uuid.NewString() + "?mode=memory&cache=shared",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, accounts.Migrate(ctx, db))
	return db
}

func newTestRepos(t *testing.T) accounts.RepositoryManager {
	t.Helper()
	return accounts.NewRepositoryManager(newTestDB(t))
}

func createUser(t *testing.T, users accounts.Users, name, email string, role accounts.UserRole, status accounts.UserStatus) *accounts.User {
	t.Helper()

	hash, err := accounts.HashPasswordWithCost(testPassword, bcrypt.MinCost)
	require.NoError(t, err)

	user, err := users.Register(context.Background(), &accounts.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Status:       status,
	})
	require.NoError(t, err)
	return user
}

type fixture struct {
	repos      accounts.RepositoryManager
	userTokens *accounts.TokenServiceImpl
	adminToken *accounts.TokenServiceImpl
	auther     *accounts.Auther
	notifier   *recordingNotifier
	presence   *fakePresence
	activity   *activityRecorder
	accounts   *accounts.AccountService
	moderation *accounts.ModerationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	repos := newTestRepos(t)
	userTokens, adminTokens := accounts.NewTokenServices(testConfig{}, nil)
	activity := &activityRecorder{}

	auther := accounts.NewAuthenticator(accounts.NewUserProvider(repos.Users()), userTokens, adminTokens).
		WithActivitySink(activity)

	notifier := &recordingNotifier{users: repos.Users()}
	presence := &fakePresence{online: map[string]bool{}}

	return &fixture{
		repos:      repos,
		userTokens: userTokens,
		adminToken: adminTokens,
		auther:     auther,
		notifier:   notifier,
		presence:   presence,
		activity:   activity,
		accounts: accounts.NewAccountService(repos, auther,
			accounts.WithBcryptCost(bcrypt.MinCost),
			accounts.WithAccountActivitySink(activity),
		),
		moderation: accounts.NewModerationService(repos,
			accounts.WithModerationNotifier(notifier),
			accounts.WithModerationPresence(presence),
			accounts.WithModerationActivitySink(activity),
		),
	}
}

func (f *fixture) admin(t *testing.T) *accounts.User {
	t.Helper()
	return createUser(t, f.repos.Users(), "Admin", "admin-"+uuid.NewString()[:8]+"@example.com", accounts.RoleAdmin, accounts.UserStatusActive)
}

func (f *fixture) user(t *testing.T, name string) *accounts.User {
	t.Helper()
	return createUser(t, f.repos.Users(), name, uuid.NewString()[:8]+"@example.com", accounts.RoleUser, accounts.UserStatusActive)
}

// notification is one call received by recordingNotifier. Stored is the
// status read back from the store when the call arrived.
type notification struct {
	Kind    string
	UserID  string
	Name    string
	Actor   string
	Detail  string
	Stored  string
	Present bool
}

type recordingNotifier struct {
	mu    sync.Mutex
	users accounts.Users
	calls []notification
}

func (r *recordingNotifier) record(ctx context.Context, n notification) {
	if r.users != nil {
		status, err := r.users.AccountStatus(ctx, n.UserID)
		n.Stored, n.Present = status, err == nil
	}
	r.mu.Lock()
	r.calls = append(r.calls, n)
	r.mu.Unlock()
}

func (r *recordingNotifier) UserBanned(ctx context.Context, userID, userName, actor, reason string) {
	r.record(ctx, notification{Kind: "banned", UserID: userID, Name: userName, Actor: actor, Detail: reason})
}

func (r *recordingNotifier) UserUnbanned(ctx context.Context, userID, userName, actor string) {
	r.record(ctx, notification{Kind: "unbanned", UserID: userID, Name: userName, Actor: actor})
}

func (r *recordingNotifier) ForceLogout(ctx context.Context, userID, userName, actor string) {
	r.record(ctx, notification{Kind: "logout", UserID: userID, Name: userName, Actor: actor})
}

func (r *recordingNotifier) AdminMessage(ctx context.Context, userID, from, message string) {
	r.record(ctx, notification{Kind: "message", UserID: userID, Actor: from, Detail: message})
}

func (r *recordingNotifier) Calls() []notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification(nil), r.calls...)
}

type fakePresence struct {
	mu     sync.Mutex
	online map[string]bool
}

func (p *fakePresence) set(id string) {
	p.mu.Lock()
	p.online[id] = true
	p.mu.Unlock()
}

func (p *fakePresence) IsPresent(identity realtime.Identity) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[identity.ID]
}

func (p *fakePresence) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.online)
}

type activityRecorder struct {
	mu     sync.Mutex
	events []accounts.ActivityEvent
}

func (a *activityRecorder) Record(_ context.Context, event accounts.ActivityEvent) error {
	a.mu.Lock()
	a.events = append(a.events, event)
	a.mu.Unlock()
	return nil
}

func (a *activityRecorder) Types() []accounts.ActivityEventType {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]accounts.ActivityEventType, 0, len(a.events))
	for _, e := range a.events {
		out = append(out, e.EventType)
	}
	return out
}
