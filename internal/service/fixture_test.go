package service

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/seat-reservation-admin/internal/metrics"
	"github.com/iliyamo/seat-reservation-admin/internal/model"
	"github.com/iliyamo/seat-reservation-admin/internal/queue"
	"github.com/iliyamo/seat-reservation-admin/internal/repository"
	"github.com/iliyamo/seat-reservation-admin/internal/testutil"
	"github.com/iliyamo/seat-reservation-admin/internal/utils"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.BookingEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []queue.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]queue.EventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	db       *sql.DB
	accounts *Accounts
	layouts  *Layouts
	ledger   *Ledger
	events   *recordingPublisher
	tokens   *utils.TokenIssuer
	admin    *model.User
	ana      *model.User
	bob      *model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)

	tokens, err := utils.NewTokenIssuer("test-secret", 0)
	require.NoError(t, err)

	users := repository.NewUserRepo(db)
	layoutRepo := repository.NewLayoutRepo(db)
	bm := metrics.NewBookingMetrics(prometheus.NewRegistry())

	accounts, err := NewAccounts(users, tokens, bcrypt.MinCost, nil)
	require.NoError(t, err)

	f := &fixture{
		db:       db,
		accounts: accounts,
		layouts:  NewLayouts(layoutRepo, bm, nil),
		events:   &recordingPublisher{},
		tokens:   tokens,
	}
	f.ledger = NewLedger(repository.NewBookingRepo(db), layoutRepo, f.events, bm, nil)

	ctx := context.Background()
	f.admin, err = accounts.Create(ctx, CreateUserInput{Email: "root@seat.com", Name: "Root", Password: "root-pw", Role: model.RoleSuperadmin})
	require.NoError(t, err)
	f.ana, err = accounts.Create(ctx, CreateUserInput{Email: "ana@example.com", Name: "Ana", Password: "ana-pw", Role: model.RoleUser})
	require.NoError(t, err)
	f.bob, err = accounts.Create(ctx, CreateUserInput{Email: "bob@example.com", Name: "Bob", Password: "bob-pw", Role: model.RoleUser})
	require.NoError(t, err)

	_, err = f.layouts.Replace(ctx, []model.Seat{
		{ID: "s1", Label: "A1", X: 10, Y: 10},
		{ID: "s2", Label: "A2", X: 20, Y: 10},
		{ID: "s3", Label: "A3", X: 30, Y: 10},
	}, nil)
	require.NoError(t, err)
	return f
}

func (f *fixture) countBookings(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow("SELECT COUNT(*) FROM bookings").Scan(&n))
	return n
}
