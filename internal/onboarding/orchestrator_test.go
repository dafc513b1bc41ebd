package onboarding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/auctionledger/onboard/internal/batch"
	"github.com/auctionledger/onboard/internal/common"
	"github.com/auctionledger/onboard/internal/identity"
	"github.com/auctionledger/onboard/internal/logging"
	"github.com/auctionledger/onboard/internal/outcomes"
	"github.com/auctionledger/onboard/internal/token"
	"github.com/stretchr/testify/require"
)

func discardLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type registerCall struct {
	userID  string
	org     string
	attrs   map[string]string
	asAdmin bool
}

type fakeRegistrar struct {
	mu      sync.Mutex
	calls   []registerCall
	failFor map[string]bool
}

func (f *fakeRegistrar) Register(ctx context.Context, userID, org string, attrs map[string]string, asAdmin bool) (*identity.Registration, error) {
	f.mu.Lock()
	f.calls = append(f.calls, registerCall{userID: userID, org: org, attrs: attrs, asAdmin: asAdmin})
	f.mu.Unlock()

	if f.failFor[userID] {
		return nil, fmt.Errorf("%w: user %s: CA unreachable", common.ErrRegistrationFailed, userID)
	}
	return &identity.Registration{Handle: userID}, nil
}

type fakeRecorder struct {
	mu      sync.Mutex
	args    []string
	failFor map[string]bool
	delay   bool
}

func (f *fakeRecorder) SubmitAddUser(ctx context.Context, user *batch.UserRecord) (string, error) {
	if f.delay {
		time.Sleep(time.Duration(rand.Intn(5)) * time.Millisecond)
	}

	arg, err := json.Marshal(user)
	if err != nil {
		return "", err
	}

	f.mu.Lock()
	f.args = append(f.args, string(arg))
	f.mu.Unlock()

	if f.failFor[user.UserID] {
		return "", fmt.Errorf("%w: user %s: endorsement failed", common.ErrLedgerFailed, user.UserID)
	}
	return "tx-" + user.UserID, nil
}

type memStore struct {
	mu        sync.Mutex
	persisted [][]token.IssuedToken
	err       error
}

func (s *memStore) Persist(ctx context.Context, tokens []token.IssuedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.persisted = append(s.persisted, tokens)
	return nil
}

func (s *memStore) last(t *testing.T) []token.IssuedToken {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.persisted, "nothing was persisted")
	return s.persisted[len(s.persisted)-1]
}

type memOutcomes struct {
	mu   sync.Mutex
	list []outcomes.Outcome
	err  error
}

func (m *memOutcomes) Record(ctx context.Context, o *outcomes.Outcome) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.list = append(m.list, *o)
	return nil
}

func (m *memOutcomes) ListByRun(ctx context.Context, runID string) ([]outcomes.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]outcomes.Outcome{}, m.list...), nil
}

func (m *memOutcomes) stagesFor(userID string) []outcomes.Stage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stages []outcomes.Stage
	for _, o := range m.list {
		if o.UserID == userID {
			stages = append(stages, o.Stage)
		}
	}
	return stages
}

func sampleBatch() []batch.UserRecord {
	alice := 100.0
	bob := 50.0
	return []batch.UserRecord{
		{UserID: "alice", Org: "Org1", Balance: &alice, Attributes: map[string]string{"email": "alice@example.com"}},
		{UserID: "bob", Org: "Org2", Balance: &bob},
	}
}

type fixture struct {
	registrar *fakeRegistrar
	recorder  *fakeRecorder
	store     *memStore
	outcomes  *memOutcomes
	issuer    *token.Issuer
	orch      *Orchestrator
}

func newFixture(workers int) *fixture {
	f := &fixture{
		registrar: &fakeRegistrar{failFor: map[string]bool{}},
		recorder:  &fakeRecorder{failFor: map[string]bool{}},
		store:     &memStore{},
		outcomes:  &memOutcomes{},
		issuer:    token.NewIssuer([]byte("s"), 3600*time.Second),
	}
	f.orch = New(f.registrar, f.recorder, f.issuer, f.store, f.outcomes,
		[]string{"email", "org"}, workers, discardLogger())
	return f
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(1)

	tokens, err := f.orch.Run(context.Background(), sampleBatch())
	require.NoError(t, err)
	require.Len(t, tokens, 2)

	// output order equals batch order
	require.Equal(t, "alice", tokens[0].User.UserID)
	require.Equal(t, "bob", tokens[1].User.UserID)

	// tokens decode to the source user and org with exp = issue + ttl
	for _, tok := range tokens {
		claims, err := f.issuer.Decode(tok.TokenID)
		require.NoError(t, err)
		require.Equal(t, tok.User.UserID, claims.Username)
		require.Equal(t, tok.User.Org, claims.OrgName)
		require.WithinDuration(t, time.Now().Add(3600*time.Second), claims.ExpiresAt.Time, 10*time.Second)
	}

	// the persisted set is exactly what Run returned
	require.Equal(t, tokens, f.store.last(t))

	// registration happened as admin with the whitelisted attributes only
	require.Len(t, f.registrar.calls, 2)
	require.True(t, f.registrar.calls[0].asAdmin)
	require.Equal(t, map[string]string{"email": "alice@example.com", "org": "Org1"}, f.registrar.calls[0].attrs)
	require.Equal(t, map[string]string{"org": "Org2"}, f.registrar.calls[1].attrs)

	// the ledger argument carried the full record, balance included
	require.Len(t, f.recorder.args, 2)
	var arg map[string]any
	require.NoError(t, json.Unmarshal([]byte(f.recorder.args[0]), &arg))
	require.Equal(t, float64(100), arg["balance"])
}

func TestRun_RegistrationFailureStillIssuesToken(t *testing.T) {
	t.Parallel()

	f := newFixture(1)
	f.registrar.failFor["alice"] = true

	tokens, err := f.orch.Run(context.Background(), sampleBatch())
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	require.Equal(t, "alice", tokens[0].User.UserID)

	require.Contains(t, f.outcomes.stagesFor("alice"), outcomes.StageRegistrationFailed)
	require.Contains(t, f.outcomes.stagesFor("alice"), outcomes.StageTokenIssued)
}

func TestRun_LedgerFailureStillIssuesToken(t *testing.T) {
	t.Parallel()

	f := newFixture(1)
	f.recorder.failFor["bob"] = true

	tokens, err := f.orch.Run(context.Background(), sampleBatch())
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	require.Equal(t, "bob", tokens[1].User.UserID)

	require.Contains(t, f.outcomes.stagesFor("bob"), outcomes.StageLedgerFailed)
	require.Contains(t, f.outcomes.stagesFor("bob"), outcomes.StageTokenIssued)
}

func TestRun_BothStepsFailingStillIssuesToken(t *testing.T) {
	t.Parallel()

	f := newFixture(1)
	f.registrar.failFor["alice"] = true
	f.recorder.failFor["alice"] = true

	tokens, err := f.orch.Run(context.Background(), sampleBatch())
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	require.Equal(t, "alice", tokens[0].User.UserID)
}

func TestRun_InvalidRecordSkipped(t *testing.T) {
	t.Parallel()

	f := newFixture(1)

	users := sampleBatch()
	users = append(users[:1], append([]batch.UserRecord{{Org: "Org9"}}, users[1:]...)...)

	tokens, err := f.orch.Run(context.Background(), users)
	require.NoError(t, err)
	require.Len(t, tokens, 2)
	require.Equal(t, "alice", tokens[0].User.UserID)
	require.Equal(t, "bob", tokens[1].User.UserID)

	// the invalid entry never reached the adapters
	require.Len(t, f.registrar.calls, 2)
	require.Len(t, f.recorder.args, 2)
	require.Contains(t, f.outcomes.stagesFor(""), outcomes.StageSkippedInvalid)
}

func TestRun_NoDuplicateTokens(t *testing.T) {
	t.Parallel()

	f := newFixture(1)

	tokens, err := f.orch.Run(context.Background(), sampleBatch())
	require.NoError(t, err)

	seen := map[string]bool{}
	for _, tok := range tokens {
		require.False(t, seen[tok.User.UserID], "duplicate token for %s", tok.User.UserID)
		seen[tok.User.UserID] = true
	}
}

func TestRun_PersistenceFailureFailsRun(t *testing.T) {
	t.Parallel()

	f := newFixture(1)
	f.store.err = fmt.Errorf("%w: disk full", common.ErrPersistence)

	_, err := f.orch.Run(context.Background(), sampleBatch())
	require.ErrorIs(t, err, common.ErrPersistence)
}

func TestRun_EmptyBatchStillPersists(t *testing.T) {
	t.Parallel()

	f := newFixture(1)

	tokens, err := f.orch.Run(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, tokens)
	require.Empty(t, f.store.last(t))
}

func TestRun_OutcomeRecorderFailureIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(1)
	f.outcomes.err = errors.New("outcomes db down")

	tokens, err := f.orch.Run(context.Background(), sampleBatch())
	require.NoError(t, err)
	require.Len(t, tokens, 2)
}

func TestRun_NilOutcomeRecorderDefaultsToNoop(t *testing.T) {
	t.Parallel()

	f := newFixture(1)
	orch := New(f.registrar, f.recorder, f.issuer, f.store, nil, []string{"email"}, 1, discardLogger())

	tokens, err := orch.Run(context.Background(), sampleBatch())
	require.NoError(t, err)
	require.Len(t, tokens, 2)
}

func TestRun_ParallelPreservesBatchOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(4)
	f.recorder.delay = true

	var users []batch.UserRecord
	for i := 0; i < 24; i++ {
		users = append(users, batch.UserRecord{UserID: fmt.Sprintf("user-%02d", i), Org: "Org1"})
	}

	tokens, err := f.orch.Run(context.Background(), users)
	require.NoError(t, err)
	require.Len(t, tokens, len(users))

	for i, tok := range tokens {
		require.Equal(t, fmt.Sprintf("user-%02d", i), tok.User.UserID)
	}
}

func TestRun_ParallelWithFailuresKeepsOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(3)
	f.recorder.delay = true
	f.registrar.failFor["user-03"] = true
	f.recorder.failFor["user-07"] = true

	var users []batch.UserRecord
	for i := 0; i < 10; i++ {
		users = append(users, batch.UserRecord{UserID: fmt.Sprintf("user-%02d", i), Org: "Org1"})
	}
	// one malformed entry in the middle
	users[5].UserID = ""

	tokens, err := f.orch.Run(context.Background(), users)
	require.NoError(t, err)
	require.Len(t, tokens, 9)

	want := []string{"user-00", "user-01", "user-02", "user-03", "user-04", "user-06", "user-07", "user-08", "user-09"}
	for i, tok := range tokens {
		require.Equal(t, want[i], tok.User.UserID)
	}
}

func TestRun_RerunProducesSameUserSet(t *testing.T) {
	t.Parallel()

	f := newFixture(1)

	first, err := f.orch.Run(context.Background(), sampleBatch())
	require.NoError(t, err)
	second, err := f.orch.Run(context.Background(), sampleBatch())
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		require.Equal(t, first[i].User.UserID, second[i].User.UserID)
	}
}
