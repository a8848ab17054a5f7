package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"homework_bot/internal/domain"
	"homework_bot/internal/repository"
)

type fakeUsers struct {
	mu    sync.Mutex
	users map[int64]*domain.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[int64]*domain.User)}
}

func (f *fakeUsers) EnsureUser(_ context.Context, id int64, username string, start int64, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		if username != "" {
			u.Username = username
		}
		return false, nil
	}
	f.users[id] = &domain.User{ID: id, Username: username, Credits: start, CreatedAt: now, LastActiveAt: now}
	return true, nil
}

func (f *fakeUsers) Touch(_ context.Context, id int64, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok && now.After(u.LastActiveAt) {
		u.LastActiveAt = now
	}
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindIDByUsername(_ context.Context, name string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name = strings.TrimPrefix(name, "@")
	for id, u := range f.users {
		if strings.EqualFold(u.Username, name) {
			return id, nil
		}
	}
	return 0, repository.ErrUserNotFound
}

func (f *fakeUsers) GetBalance(_ context.Context, id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[id]; ok {
		return u.Credits, nil
	}
	return 0, nil
}

func (f *fakeUsers) Spend(_ context.Context, id int64, amount int64) (int64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok || u.Credits < amount {
		return 0, false, nil
	}
	u.Credits -= amount
	return u.Credits, true, nil
}

func (f *fakeUsers) Grant(_ context.Context, id int64, delta int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return 0, repository.ErrUserNotFound
	}
	u.Credits = max(u.Credits+delta, 0)
	return u.Credits, nil
}

func (f *fakeUsers) SetBalance(_ context.Context, id int64, value int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if value < 0 {
		return repository.ErrInvalidAmount
	}
	u, ok := f.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Credits = value
	return nil
}

func (f *fakeUsers) RefillIfDue(_ context.Context, id int64, perDay int64, day time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return false, nil
	}
	if u.LastRefillDay != nil && u.LastRefillDay.Equal(day) {
		return false, nil
	}
	u.Credits += perDay
	d := day
	u.LastRefillDay = &d
	return true, nil
}

func (f *fakeUsers) AllIDs(_ context.Context) ([]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]int64, 0, len(f.users))
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (f *fakeUsers) ActivityStats(_ context.Context, since time.Time) (*domain.ActivityStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s domain.ActivityStats
	for _, u := range f.users {
		if !u.CreatedAt.Before(since) {
			s.NewUsers++
		}
		if !u.LastActiveAt.Before(since) {
			s.ActiveUsers++
		}
	}
	return &s, nil
}

func (f *fakeUsers) balance(id int64) int64 {
	b, _ := f.GetBalance(context.Background(), id)
	return b
}

type fakeReferrals struct {
	mu         sync.Mutex
	users      *fakeUsers
	inviterOf  map[int64]int64
	milestones map[[2]int64]bool
}

func newFakeReferrals(users *fakeUsers) *fakeReferrals {
	return &fakeReferrals{
		users:      users,
		inviterOf:  make(map[int64]int64),
		milestones: make(map[[2]int64]bool),
	}
}

func (f *fakeReferrals) Register(_ context.Context, inviter, invitee int64, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inviter == invitee {
		return false, nil
	}
	if _, ok := f.inviterOf[invitee]; ok {
		return false, nil
	}
	f.inviterOf[invitee] = inviter
	return true, nil
}

func (f *fakeReferrals) RegisterWithBonus(ctx context.Context, inviter, invitee, bonus int64, now time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if inviter == invitee {
		return false, nil
	}
	if _, ok := f.inviterOf[invitee]; ok {
		return false, nil
	}
	if _, err := f.users.Grant(ctx, inviter, bonus); err != nil {
		return false, err
	}
	f.inviterOf[invitee] = inviter
	return true, nil
}

func (f *fakeReferrals) Count(_ context.Context, inviter int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, inv := range f.inviterOf {
		if inv == inviter {
			n++
		}
	}
	return n, nil
}

func (f *fakeReferrals) MarkMilestoneIfNew(_ context.Context, inviter int64, milestone int, _ time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]int64{inviter, int64(milestone)}
	if f.milestones[k] {
		return false, nil
	}
	f.milestones[k] = true
	return true, nil
}

func (f *fakeReferrals) TopInviters(ctx context.Context, limit int) ([]repository.InviterStat, error) {
	f.mu.Lock()
	counts := make(map[int64]int64)
	for _, inv := range f.inviterOf {
		counts[inv]++
	}
	f.mu.Unlock()

	res := make([]repository.InviterStat, 0, len(counts))
	for id, n := range counts {
		res = append(res, repository.InviterStat{UserID: id, Count: n})
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].Count != res[j].Count {
			return res[i].Count > res[j].Count
		}
		return res[i].UserID < res[j].UserID
	})
	if len(res) > limit {
		res = res[:limit]
	}
	return res, nil
}

type fakeUsage struct {
	mu     sync.Mutex
	events map[int64][]time.Time
}

func newFakeUsage() *fakeUsage {
	return &fakeUsage{events: make(map[int64][]time.Time)}
}

func (f *fakeUsage) Add(_ context.Context, id int64, ts time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[id] = append(f.events[id], ts)
	return nil
}

func (f *fakeUsage) Count(_ context.Context, id int64, since time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, ts := range f.events[id] {
		if !ts.Before(since) {
			n++
		}
	}
	return n, nil
}

type fakeAudit struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func (f *fakeAudit) Create(_ context.Context, e *domain.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeAudit) GetRecent(_ context.Context, limit int) ([]*domain.AuditLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var res []*domain.AuditLog
	for i := len(f.entries) - 1; i >= 0 && len(res) < limit; i-- {
		res = append(res, f.entries[i])
	}
	return res, nil
}

type notice struct {
	inviterID int64
	invited   int64
	prize     *domain.Prize
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []notice
	err     error
}

func (f *fakeNotifier) NewReferral(_ context.Context, inviterID int64, _ Visitor, invited int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, notice{inviterID: inviterID, invited: invited})
	return f.err
}

func (f *fakeNotifier) MilestoneReached(_ context.Context, inviterID int64, prize domain.Prize, invited int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := prize
	f.notices = append(f.notices, notice{inviterID: inviterID, invited: invited, prize: &p})
	return f.err
}

func (f *fakeNotifier) prizeNotices() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, x := range f.notices {
		if x.prize != nil {
			n++
		}
	}
	return n
}
