package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu         sync.Mutex
	candidates []ReminderCandidate
	listErr    error
	markErr    error
	lastLimit  int
	marked     map[uint]*time.Time
}

func (s *fakeStore) ListCandidates(ctx context.Context, now time.Time, limit int) ([]ReminderCandidate, error) {
	s.lastLimit = limit
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.candidates, nil
}

func (s *fakeStore) MarkReminded(ctx context.Context, planID uint, prev *time.Time, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.markErr != nil {
		return false, s.markErr
	}
	if s.marked == nil {
		s.marked = make(map[uint]*time.Time)
	}
	// Same compare-and-set contract as the real store.
	current, seen := s.marked[planID]
	if seen && !equalTimePtr(current, prev) {
		return false, nil
	}
	if !seen && prev != nil {
		return false, nil
	}
	stamp := now
	s.marked[planID] = &stamp
	return true, nil
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

type fakeDirectory struct {
	names    map[string]string
	contacts map[string]Contact
	namesErr error
}

func (d *fakeDirectory) AccountNames(ctx context.Context, tenantID string, accountIDs []string) (map[string]string, error) {
	if d.namesErr != nil {
		return nil, d.namesErr
	}
	return d.names, nil
}

func (d *fakeDirectory) AccountContact(ctx context.Context, tenantID, accountID string) (Contact, error) {
	return d.contacts[accountID], nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	sent    []ReminderMessage
	failFor map[string]error // keyed by contact email
}

func (n *fakeNotifier) Send(ctx context.Context, contact Contact, msg ReminderMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err, ok := n.failFor[contact.Email]; ok {
		return err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func candidate(planID uint, tenant, account string, due time.Time) ReminderCandidate {
	return ReminderCandidate{
		PlanID:             planID,
		PlanUUID:           account + "-plan",
		TenantID:           tenant,
		AccountID:          account,
		DueDate:            due,
		Amount:             decimal.NewFromInt(1000),
		PreReminderEnabled: true,
		ContactEmail:       account + "@example.com",
	}
}

func newTestDispatcher(store *fakeStore, dir *fakeDirectory, notifier *fakeNotifier) *Dispatcher {
	return &Dispatcher{
		Store:     store,
		Directory: dir,
		Notifier:  notifier,
		Policy:    DefaultReminderPolicy(),
	}
}

func TestRunBatchSendsEligiblePlans(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{candidates: []ReminderCandidate{
		candidate(1, "tenant-a", "acct-1", date(2026, 1, 12)), // pre-due
		candidate(2, "tenant-a", "acct-2", date(2026, 1, 2)),  // overdue
		candidate(3, "tenant-b", "acct-3", date(2026, 1, 25)), // not eligible
	}}
	dir := &fakeDirectory{names: map[string]string{"acct-1": "Ana", "acct-2": "Budi"}}
	notifier := &fakeNotifier{}

	report, err := newTestDispatcher(store, dir, notifier).RunBatch(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 0, report.Skipped)
	assert.Equal(t, 0, report.Errors)
	assert.Len(t, notifier.sent, 2)
	assert.Len(t, store.marked, 2)
}

func TestRunBatchUsesDefaultLimit(t *testing.T) {
	store := &fakeStore{}
	_, err := newTestDispatcher(store, &fakeDirectory{}, &fakeNotifier{}).
		RunBatch(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 200, store.lastLimit)

	d := newTestDispatcher(store, &fakeDirectory{}, &fakeNotifier{})
	d.BatchLimit = 25
	_, err = d.RunBatch(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, 25, store.lastLimit)
}

func TestRunBatchListFailureIsFatal(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	_, err := newTestDispatcher(store, &fakeDirectory{}, &fakeNotifier{}).
		RunBatch(context.Background(), time.Now())
	require.Error(t, err)
}

func TestRunBatchIsolatesSendFailures(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{candidates: []ReminderCandidate{
		candidate(1, "tenant-a", "acct-1", date(2026, 1, 12)),
		candidate(2, "tenant-a", "acct-2", date(2026, 1, 12)),
		candidate(3, "tenant-a", "acct-3", date(2026, 1, 12)),
	}}
	dir := &fakeDirectory{names: map[string]string{"acct-1": "Ana", "acct-2": "Budi", "acct-3": "Citra"}}
	notifier := &fakeNotifier{
		failFor: map[string]error{"acct-2@example.com": errors.New("smtp timeout")},
	}

	report, err := newTestDispatcher(store, dir, notifier).RunBatch(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Sent)
	assert.Equal(t, 1, report.Errors)

	// The failed plan was not marked, so the next run retries it.
	assert.Len(t, store.marked, 2)
	_, marked := store.marked[2]
	assert.False(t, marked)
}

func TestRunBatchDoubleRunIsIdempotent(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	cands := []ReminderCandidate{
		candidate(1, "tenant-a", "acct-1", date(2026, 1, 12)),
	}
	store := &fakeStore{candidates: cands}
	dir := &fakeDirectory{names: map[string]string{"acct-1": "Ana"}}
	notifier := &fakeNotifier{}
	d := newTestDispatcher(store, dir, notifier)

	first, err := d.RunBatch(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Sent)

	// A second run from the same stale snapshot loses the compare-and-set.
	second, err := d.RunBatch(context.Background(), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, second.Sent)
	assert.Equal(t, 1, second.Skipped)
	require.Len(t, second.Items, 1)
	assert.Equal(t, OutcomeSkipped, second.Items[0].Outcome)
}

func TestRunBatchSkipsMissingContact(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	cand := candidate(1, "tenant-a", "acct-1", date(2026, 1, 12))
	cand.ContactEmail = ""
	cand.ContactPhone = ""

	store := &fakeStore{candidates: []ReminderCandidate{cand}}
	dir := &fakeDirectory{contacts: map[string]Contact{}} // directory has nothing either
	notifier := &fakeNotifier{}

	report, err := newTestDispatcher(store, dir, notifier).RunBatch(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.Skipped)
	assert.Empty(t, notifier.sent)
	assert.Empty(t, store.marked)
}

func TestRunBatchResolvesContactFromDirectory(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	cand := candidate(1, "tenant-a", "acct-1", date(2026, 1, 12))
	cand.ContactEmail = ""

	store := &fakeStore{candidates: []ReminderCandidate{cand}}
	dir := &fakeDirectory{contacts: map[string]Contact{
		"acct-1": {Email: "resolved@example.com"},
	}}
	notifier := &fakeNotifier{}

	report, err := newTestDispatcher(store, dir, notifier).RunBatch(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Sent)
}

func TestRunBatchNameLookupFailureFallsBack(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{candidates: []ReminderCandidate{
		candidate(1, "tenant-a", "acct-1", date(2026, 1, 12)),
	}}
	dir := &fakeDirectory{namesErr: errors.New("directory down")}
	notifier := &fakeNotifier{}

	report, err := newTestDispatcher(store, dir, notifier).RunBatch(context.Background(), now)
	require.NoError(t, err)

	// Names only personalize; the reminder still goes out addressed by id.
	assert.Equal(t, 1, report.Sent)
	require.Len(t, notifier.sent, 1)
	assert.Contains(t, notifier.sent[0].Body, "acct-1")
}

func TestRunBatchCancellation(t *testing.T) {
	now := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	store := &fakeStore{candidates: []ReminderCandidate{
		candidate(1, "tenant-a", "acct-1", date(2026, 1, 12)),
		candidate(2, "tenant-a", "acct-2", date(2026, 1, 12)),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestDispatcher(store, &fakeDirectory{}, &fakeNotifier{}).RunBatch(ctx, now)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 0, report.Sent)
}

func TestBuildMessageTemplates(t *testing.T) {
	cand := candidate(1, "tenant-a", "acct-1", date(2026, 1, 12))

	msg := buildMessage(CategoryPreDue, "Ana", cand)
	assert.Contains(t, msg.Body, "Ana")
	assert.Contains(t, msg.Body, "1000")
	assert.Contains(t, msg.Body, "2026-01-12")

	msg = buildMessage(CategoryOverdue, "", cand)
	assert.Contains(t, msg.Body, "acct-1")
	assert.NotContains(t, msg.Body, "$name")
}
