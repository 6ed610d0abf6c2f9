package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	autodomain "github.com/Edness1/ColorCompete-sub001/internal/automation/domain"
	campaignapp "github.com/Edness1/ColorCompete-sub001/internal/campaign/app"
	"github.com/Edness1/ColorCompete-sub001/internal/drawing/domain"
	"github.com/Edness1/ColorCompete-sub001/internal/giftcard"
	memberdomain "github.com/Edness1/ColorCompete-sub001/internal/member/domain"
	"github.com/Edness1/ColorCompete-sub001/internal/template"
)

// --- Mocks ---

type MockDrawingRepo struct {
	mock.Mock
}

func (m *MockDrawingRepo) InsertIfAbsent(ctx context.Context, drawing *domain.MonthlyDrawing) (*domain.MonthlyDrawing, bool, error) {
	args := m.Called(ctx, drawing)
	switch stored := args.Get(0).(type) {
	case *domain.MonthlyDrawing:
		return stored, args.Bool(1), args.Error(2)
	case echoInserted:
		// The fresh-insert case returns whatever the engine inserted.
		return drawing, args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

type echoInserted struct{}

func (m *MockDrawingRepo) GetByPeriod(ctx context.Context, month time.Month, year int, tier string) (*domain.MonthlyDrawing, error) {
	args := m.Called(ctx, month, year, tier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MonthlyDrawing), args.Error(1)
}

func (m *MockDrawingRepo) SetWinner(ctx context.Context, id uuid.UUID, participants []domain.Participant, winner *domain.Winner, updatedAt time.Time) error {
	args := m.Called(ctx, id, participants, winner, updatedAt)
	return args.Error(0)
}

func (m *MockDrawingRepo) Complete(ctx context.Context, id uuid.UUID, giftCard *domain.GiftCardDetails, updatedAt time.Time) error {
	args := m.Called(ctx, id, giftCard, updatedAt)
	return args.Error(0)
}

type MockMemberRepo struct {
	mock.Mock
}

func (m *MockMemberRepo) GetByID(ctx context.Context, id uuid.UUID) (*memberdomain.Member, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*memberdomain.Member), args.Error(1)
}

func (m *MockMemberRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*memberdomain.Member, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*memberdomain.Member), args.Error(1)
}

func (m *MockMemberRepo) ListActive(ctx context.Context) ([]*memberdomain.Member, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*memberdomain.Member), args.Error(1)
}

func (m *MockMemberRepo) ListByTiers(ctx context.Context, tiers []string) ([]*memberdomain.Member, error) {
	args := m.Called(ctx, tiers)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*memberdomain.Member), args.Error(1)
}

func (m *MockMemberRepo) ListRewardEligible(ctx context.Context, tier string) ([]*memberdomain.Member, error) {
	args := m.Called(ctx, tier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*memberdomain.Member), args.Error(1)
}

func (m *MockMemberRepo) SetEmailOptOut(ctx context.Context, id uuid.UUID, optOut bool) error {
	args := m.Called(ctx, id, optOut)
	return args.Error(0)
}

type MockAutomationRepo struct {
	mock.Mock
}

func (m *MockAutomationRepo) GetByID(ctx context.Context, id uuid.UUID) (*autodomain.Automation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*autodomain.Automation), args.Error(1)
}

func (m *MockAutomationRepo) GetByTrigger(ctx context.Context, trigger autodomain.TriggerType) (*autodomain.Automation, error) {
	args := m.Called(ctx, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*autodomain.Automation), args.Error(1)
}

func (m *MockAutomationRepo) ListActive(ctx context.Context) ([]*autodomain.Automation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*autodomain.Automation), args.Error(1)
}

func (m *MockAutomationRepo) RecordSend(ctx context.Context, id uuid.UUID, sentCount int, triggeredAt time.Time) error {
	args := m.Called(ctx, id, sentCount, triggeredAt)
	return args.Error(0)
}

type MockIssuer struct {
	mock.Mock
}

func (m *MockIssuer) Issue(ctx context.Context, request giftcard.IssueRequest) (*giftcard.IssueResult, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*giftcard.IssueResult), args.Error(1)
}

func (m *MockIssuer) GetName() string { return "mock" }

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Dispatch(ctx context.Context, in campaignapp.DispatchInput) (*campaignapp.DispatchSummary, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*campaignapp.DispatchSummary), args.Error(1)
}

// --- Test setup ---

type engineTestComponents struct {
	engine         *Engine
	repo           *MockDrawingRepo
	memberRepo     *MockMemberRepo
	automationRepo *MockAutomationRepo
	issuer         *MockIssuer
	notifier       *MockNotifier
}

func setupEngineTest(t *testing.T) engineTestComponents {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := new(MockDrawingRepo)
	memberRepo := new(MockMemberRepo)
	automationRepo := new(MockAutomationRepo)
	issuer := new(MockIssuer)
	notifier := new(MockNotifier)

	engine := NewEngine(repo, memberRepo, automationRepo, issuer, notifier, logger, EngineConfig{
		PrizeAmounts: map[string]float64{memberdomain.TierLite: 25, memberdomain.TierPro: 50},
	})
	engine.now = func() time.Time { return time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC) }
	return engineTestComponents{engine, repo, memberRepo, automationRepo, issuer, notifier}
}

func eligibleMembers(n int) []*memberdomain.Member {
	members := make([]*memberdomain.Member, n)
	for i := range members {
		members[i] = &memberdomain.Member{
			ID:       uuid.New(),
			Email:    "member" + string(rune('a'+i)) + "@example.com",
			Name:     "Member " + string(rune('A'+i)),
			Tier:     memberdomain.TierLite,
			IsActive: true,
		}
	}
	return members
}

func issuedCard() *giftcard.IssueResult {
	return &giftcard.IssueResult{
		ProviderOrderID: uuid.NewString(),
		Code:            "ABCD-1234",
		RedeemURL:       "https://giftcards.example/redeem/ABCD-1234",
		Amount:          25,
		Currency:        "USD",
	}
}

// --- Tests ---

func TestRun_HappyPathSelectsDisbursesAndNotifies(t *testing.T) {
	c := setupEngineTest(t)
	members := eligibleMembers(3)
	c.engine.pick = func(n int) int { return 1 }

	c.automationRepo.On("GetByTrigger", mock.Anything, autodomain.TriggerDrawingWinner).Return(nil, autodomain.ErrNotFound).Once()
	c.repo.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(echoInserted{}, true, nil).Once()
	c.memberRepo.On("ListRewardEligible", mock.Anything, memberdomain.TierLite).Return(members, nil).Once()
	c.repo.On("SetWinner", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	c.issuer.On("Issue", mock.Anything, mock.MatchedBy(func(r giftcard.IssueRequest) bool {
		return r.ExternalID == "2026-03-lite" && r.Amount == 25 && r.RecipientEmail == members[1].Email
	})).Return(issuedCard(), nil).Once()
	c.repo.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	c.notifier.On("Dispatch", mock.Anything, mock.MatchedBy(func(in campaignapp.DispatchInput) bool {
		return len(in.Recipients) == 1 && in.Recipients[0].Email == members[1].Email
	})).Return(&campaignapp.DispatchSummary{Attempted: 1, Sent: 1}, nil).Once()

	result, err := c.engine.Run(context.Background(), memberdomain.TierLite)
	require.NoError(t, err)
	assert.True(t, result.Drawing.IsCompleted)
	assert.True(t, result.WinnerNotified)
	assert.Equal(t, members[1].ID, result.Drawing.Winner.MemberID)
	assert.Equal(t, "ABCD-1234", result.Drawing.GiftCard.Code)
	c.issuer.AssertNumberOfCalls(t, "Issue", 1)
}

func TestRun_SecondRunSamePeriodIsNoOp(t *testing.T) {
	c := setupEngineTest(t)
	existing := &domain.MonthlyDrawing{
		ID: uuid.New(), Month: time.March, Year: 2026, Tier: memberdomain.TierLite,
		Winner:      &domain.Winner{MemberID: uuid.New(), Email: "w@example.com"},
		GiftCard:    &domain.GiftCardDetails{Code: "OLD-CODE"},
		IsCompleted: true,
	}

	c.automationRepo.On("GetByTrigger", mock.Anything, autodomain.TriggerDrawingWinner).Return(nil, autodomain.ErrNotFound).Once()
	c.repo.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(existing, false, nil).Once()

	result, err := c.engine.Run(context.Background(), memberdomain.TierLite)
	require.NoError(t, err)
	assert.True(t, result.AlreadyCompleted)
	assert.Equal(t, existing, result.Drawing)
	c.issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
	c.repo.AssertNotCalled(t, "SetWinner", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_EmptyPoolNoWinnerNoDisbursement(t *testing.T) {
	c := setupEngineTest(t)

	c.automationRepo.On("GetByTrigger", mock.Anything, autodomain.TriggerDrawingWinner).Return(nil, autodomain.ErrNotFound).Once()
	c.repo.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(echoInserted{}, true, nil).Once()
	c.memberRepo.On("ListRewardEligible", mock.Anything, memberdomain.TierLite).Return([]*memberdomain.Member{}, nil).Once()

	result, err := c.engine.Run(context.Background(), memberdomain.TierLite)
	require.NoError(t, err)
	assert.True(t, result.NoEligible)
	assert.Nil(t, result.Drawing.Winner)
	c.issuer.AssertNotCalled(t, "Issue", mock.Anything, mock.Anything)
	c.notifier.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestRun_InvalidEmailsExcludedFromPool(t *testing.T) {
	c := setupEngineTest(t)
	members := eligibleMembers(2)
	members[0].Email = "not-an-address"
	c.engine.pick = func(n int) int {
		require.Equal(t, 1, n, "pool excludes the invalid address")
		return 0
	}

	c.automationRepo.On("GetByTrigger", mock.Anything, autodomain.TriggerDrawingWinner).Return(nil, autodomain.ErrNotFound).Once()
	c.repo.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(echoInserted{}, true, nil).Once()
	c.memberRepo.On("ListRewardEligible", mock.Anything, memberdomain.TierLite).Return(members, nil).Once()
	c.repo.On("SetWinner", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	c.issuer.On("Issue", mock.Anything, mock.Anything).Return(issuedCard(), nil).Once()
	c.repo.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	c.notifier.On("Dispatch", mock.Anything, mock.Anything).Return(&campaignapp.DispatchSummary{Sent: 1}, nil).Once()

	result, err := c.engine.Run(context.Background(), memberdomain.TierLite)
	require.NoError(t, err)
	assert.Equal(t, members[1].ID, result.Drawing.Winner.MemberID)
}

func TestRun_DisbursementFailureKeepsWinnerForRetry(t *testing.T) {
	c := setupEngineTest(t)
	members := eligibleMembers(1)
	c.engine.pick = func(n int) int { return 0 }

	c.automationRepo.On("GetByTrigger", mock.Anything, autodomain.TriggerDrawingWinner).Return(nil, autodomain.ErrNotFound).Once()
	c.repo.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(echoInserted{}, true, nil).Once()
	c.memberRepo.On("ListRewardEligible", mock.Anything, memberdomain.TierLite).Return(members, nil).Once()
	c.repo.On("SetWinner", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	c.issuer.On("Issue", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()

	result, err := c.engine.Run(context.Background(), memberdomain.TierLite)
	assert.ErrorIs(t, err, domain.ErrDisbursement)
	require.NotNil(t, result)
	assert.False(t, result.Drawing.IsCompleted)
	assert.NotNil(t, result.Drawing.Winner)
	c.repo.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	c.notifier.AssertNotCalled(t, "Dispatch", mock.Anything, mock.Anything)
}

func TestRun_RetryAfterDisbursementFailureSkipsSelection(t *testing.T) {
	c := setupEngineTest(t)
	winner := &domain.Winner{MemberID: uuid.New(), Email: "w@example.com", Name: "W"}
	existing := &domain.MonthlyDrawing{
		ID: uuid.New(), Month: time.March, Year: 2026, Tier: memberdomain.TierLite,
		PrizeAmount: 25, Winner: winner, IsCompleted: false,
	}

	c.automationRepo.On("GetByTrigger", mock.Anything, autodomain.TriggerDrawingWinner).Return(nil, autodomain.ErrNotFound).Once()
	c.repo.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(existing, false, nil).Once()
	c.issuer.On("Issue", mock.Anything, mock.MatchedBy(func(r giftcard.IssueRequest) bool {
		return r.RecipientEmail == winner.Email
	})).Return(issuedCard(), nil).Once()
	c.repo.On("Complete", mock.Anything, existing.ID, mock.Anything, mock.Anything).Return(nil).Once()
	c.notifier.On("Dispatch", mock.Anything, mock.Anything).Return(&campaignapp.DispatchSummary{Sent: 1}, nil).Once()

	result, err := c.engine.Run(context.Background(), memberdomain.TierLite)
	require.NoError(t, err)
	assert.True(t, result.Drawing.IsCompleted)
	assert.Equal(t, winner, result.Drawing.Winner, "retry keeps the originally selected winner")
	c.memberRepo.AssertNotCalled(t, "ListRewardEligible", mock.Anything, mock.Anything)
	c.repo.AssertNotCalled(t, "SetWinner", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRun_AutomationRewardSettingsOverridePrize(t *testing.T) {
	c := setupEngineTest(t)
	members := eligibleMembers(1)
	c.engine.pick = func(n int) int { return 0 }
	automation := &autodomain.Automation{
		ID:          uuid.New(),
		IsActive:    true,
		TriggerType: autodomain.TriggerDrawingWinner,
		Template:    template.MessageTemplate{Subject: "You won!", HTML: "<p>{{gift_card_code}}</p>"},
		RewardSettings: &autodomain.RewardSettings{
			Amount:  100,
			Message: "Congrats!",
		},
	}

	c.automationRepo.On("GetByTrigger", mock.Anything, autodomain.TriggerDrawingWinner).Return(automation, nil).Once()
	c.repo.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(echoInserted{}, true, nil).Once()
	c.memberRepo.On("ListRewardEligible", mock.Anything, memberdomain.TierLite).Return(members, nil).Once()
	c.repo.On("SetWinner", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	c.issuer.On("Issue", mock.Anything, mock.MatchedBy(func(r giftcard.IssueRequest) bool {
		return r.Amount == 100
	})).Return(issuedCard(), nil).Once()
	c.repo.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	c.notifier.On("Dispatch", mock.Anything, mock.MatchedBy(func(in campaignapp.DispatchInput) bool {
		return in.Template.Subject == "You won!" && in.AutomationID != nil && *in.AutomationID == automation.ID
	})).Return(&campaignapp.DispatchSummary{Sent: 1}, nil).Once()

	result, err := c.engine.Run(context.Background(), memberdomain.TierLite)
	require.NoError(t, err)
	assert.Equal(t, float64(100), result.Drawing.PrizeAmount)
}

func TestRun_WinnerNotificationCarriesTier(t *testing.T) {
	c := setupEngineTest(t)
	members := eligibleMembers(1)
	c.engine.pick = func(n int) int { return 0 }

	var dispatched campaignapp.DispatchInput
	c.automationRepo.On("GetByTrigger", mock.Anything, autodomain.TriggerDrawingWinner).Return(nil, autodomain.ErrNotFound).Once()
	c.repo.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(echoInserted{}, true, nil).Once()
	c.memberRepo.On("ListRewardEligible", mock.Anything, memberdomain.TierLite).Return(members, nil).Once()
	c.repo.On("SetWinner", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	c.issuer.On("Issue", mock.Anything, mock.Anything).Return(issuedCard(), nil).Once()
	c.repo.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	c.notifier.On("Dispatch", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		dispatched = args.Get(1).(campaignapp.DispatchInput)
	}).Return(&campaignapp.DispatchSummary{Sent: 1}, nil).Once()

	_, err := c.engine.Run(context.Background(), memberdomain.TierLite)
	require.NoError(t, err)

	require.Len(t, dispatched.Recipients, 1)
	assert.Equal(t, memberdomain.TierLite, dispatched.Recipients[0].Tier,
		"the recipient snapshot carries the drawing tier for template scope")
	assert.Equal(t, memberdomain.TierLite, dispatched.TriggerContext["tier"])
	assert.Equal(t, "ABCD-1234", dispatched.TriggerContext["gift_card_code"])
}

func TestRun_NotificationFailureDoesNotFailDrawing(t *testing.T) {
	c := setupEngineTest(t)
	members := eligibleMembers(1)
	c.engine.pick = func(n int) int { return 0 }

	c.automationRepo.On("GetByTrigger", mock.Anything, autodomain.TriggerDrawingWinner).Return(nil, autodomain.ErrNotFound).Once()
	c.repo.On("InsertIfAbsent", mock.Anything, mock.Anything).Return(echoInserted{}, true, nil).Once()
	c.memberRepo.On("ListRewardEligible", mock.Anything, memberdomain.TierLite).Return(members, nil).Once()
	c.repo.On("SetWinner", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	c.issuer.On("Issue", mock.Anything, mock.Anything).Return(issuedCard(), nil).Once()
	c.repo.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	c.notifier.On("Dispatch", mock.Anything, mock.Anything).Return(nil, assert.AnError).Once()

	result, err := c.engine.Run(context.Background(), memberdomain.TierLite)
	require.NoError(t, err, "the prize is disbursed; notification failure is logged, not fatal")
	assert.True(t, result.Drawing.IsCompleted)
	assert.False(t, result.WinnerNotified)
}
