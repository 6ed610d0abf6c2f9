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
	"github.com/Edness1/ColorCompete-sub001/internal/campaign/domain"
	"github.com/Edness1/ColorCompete-sub001/internal/mailer"
	memberdomain "github.com/Edness1/ColorCompete-sub001/internal/member/domain"
	"github.com/Edness1/ColorCompete-sub001/internal/template"
	trackingdomain "github.com/Edness1/ColorCompete-sub001/internal/tracking/domain"
)

// --- Mocks ---

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) Send(ctx context.Context, request mailer.SendRequest) (*mailer.SendResult, error) {
	args := m.Called(ctx, request)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mailer.SendResult), args.Error(1)
}

func (m *MockGateway) Stats(ctx context.Context, campaignID string) (*mailer.ProviderStats, error) {
	args := m.Called(ctx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*mailer.ProviderStats), args.Error(1)
}

func (m *MockGateway) GetName() string { return "mock" }

type MockDeliveryLogRepo struct {
	mock.Mock
}

func (m *MockDeliveryLogRepo) Create(ctx context.Context, log *trackingdomain.DeliveryLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockDeliveryLogRepo) GetByID(ctx context.Context, id uuid.UUID) (*trackingdomain.DeliveryLog, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trackingdomain.DeliveryLog), args.Error(1)
}

func (m *MockDeliveryLogRepo) GetByProviderMessageID(ctx context.Context, providerMessageID string) (*trackingdomain.DeliveryLog, error) {
	args := m.Called(ctx, providerMessageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*trackingdomain.DeliveryLog), args.Error(1)
}

func (m *MockDeliveryLogRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status trackingdomain.DeliveryStatus, errorMessage string, updatedAt time.Time) error {
	args := m.Called(ctx, id, status, errorMessage, updatedAt)
	return args.Error(0)
}

func (m *MockDeliveryLogRepo) AppendOpen(ctx context.Context, id uuid.UUID, event trackingdomain.EngagementEvent) error {
	args := m.Called(ctx, id, event)
	return args.Error(0)
}

func (m *MockDeliveryLogRepo) AppendClick(ctx context.Context, id uuid.UUID, event trackingdomain.EngagementEvent) error {
	args := m.Called(ctx, id, event)
	return args.Error(0)
}

type MockCampaignRepo struct {
	mock.Mock
}

func (m *MockCampaignRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Campaign, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Campaign), args.Error(1)
}

func (m *MockCampaignRepo) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.CampaignStatus) error {
	args := m.Called(ctx, id, from, to)
	return args.Error(0)
}

func (m *MockCampaignRepo) IncrementCounters(ctx context.Context, id uuid.UUID, delta domain.CounterDelta) error {
	args := m.Called(ctx, id, delta)
	return args.Error(0)
}

func (m *MockCampaignRepo) RaiseCounters(ctx context.Context, id uuid.UUID, delivered, opened, clicked, bounced int) error {
	args := m.Called(ctx, id, delivered, opened, clicked, bounced)
	return args.Error(0)
}

func (m *MockCampaignRepo) ListDispatched(ctx context.Context) ([]*domain.Campaign, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Campaign), args.Error(1)
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

// --- Test setup ---

type dispatcherTestComponents struct {
	dispatcher   *Dispatcher
	gateway      *MockGateway
	deliveryRepo *MockDeliveryLogRepo
	campaignRepo *MockCampaignRepo
	autoRepo     *MockAutomationRepo
	memberRepo   *MockMemberRepo
}

func setupDispatcherTest(t *testing.T) dispatcherTestComponents {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gateway := new(MockGateway)
	deliveryRepo := new(MockDeliveryLogRepo)
	campaignRepo := new(MockCampaignRepo)
	autoRepo := new(MockAutomationRepo)
	memberRepo := new(MockMemberRepo)

	cfg := DispatcherConfig{
		SendInterval:      time.Millisecond,
		UnsubscribeSecret: "test-secret",
		PublicURL:         "https://colorcompete.example",
		FromAddress:       "hello@colorcompete.example",
		FromName:          "ColorCompete",
	}
	d := NewDispatcher(gateway, deliveryRepo, campaignRepo, autoRepo, memberRepo, logger, cfg)
	return dispatcherTestComponents{d, gateway, deliveryRepo, campaignRepo, autoRepo, memberRepo}
}

func testMembers(n int) []*memberdomain.Member {
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

func testTemplate() template.MessageTemplate {
	return template.MessageTemplate{
		Subject: "Hi {{user_name}}",
		HTML:    "<p>Hi {{user_name}}</p><p><a href=\"{{unsubscribe_url}}\">Unsubscribe</a></p>",
	}
}

func successResult() *mailer.SendResult {
	return &mailer.SendResult{Success: true, ProviderMessageID: uuid.NewString(), StatusCode: 202}
}

// --- Tests ---

func TestDispatch_PartialFailureDoesNotAbortBatch(t *testing.T) {
	c := setupDispatcherTest(t)
	members := testMembers(5)

	// Recipient #3 fails; everyone else succeeds.
	for i, m := range members {
		m := m
		if i == 2 {
			c.gateway.On("Send", mock.Anything, mock.MatchedBy(func(r mailer.SendRequest) bool {
				return r.To == m.Email
			})).Return(nil, assert.AnError).Once()
		} else {
			c.gateway.On("Send", mock.Anything, mock.MatchedBy(func(r mailer.SendRequest) bool {
				return r.To == m.Email
			})).Return(successResult(), nil).Once()
		}
	}
	c.deliveryRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Times(5)

	summary, err := c.dispatcher.Dispatch(context.Background(), DispatchInput{
		Template:   testTemplate(),
		Recipients: members,
		Mode:       ModeProduction,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, summary.Attempted)
	assert.Equal(t, 4, summary.Sent)
	require.Len(t, summary.Results, 5)
	assert.False(t, summary.Results[2].Success)
	assert.NotEmpty(t, summary.Results[2].Error)
	for i, res := range summary.Results {
		assert.Equal(t, members[i].ID, res.MemberID, "results keep the supplied recipient order")
	}
	c.gateway.AssertExpectations(t)
}

func TestDispatch_RecipientsAttemptedInOrder(t *testing.T) {
	c := setupDispatcherTest(t)
	members := testMembers(3)

	var sentTo []string
	c.gateway.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sentTo = append(sentTo, args.Get(1).(mailer.SendRequest).To)
	}).Return(successResult(), nil).Times(3)
	c.deliveryRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Times(3)

	_, err := c.dispatcher.Dispatch(context.Background(), DispatchInput{
		Template:   testTemplate(),
		Recipients: members,
		Mode:       ModeProduction,
	})
	require.NoError(t, err)
	require.Len(t, sentTo, 3)
	for i, m := range members {
		assert.Equal(t, m.Email, sentTo[i])
	}
}

func TestDispatch_EnforcesMinimumSendInterval(t *testing.T) {
	c := setupDispatcherTest(t)
	c.dispatcher.cfg.SendInterval = 20 * time.Millisecond
	members := testMembers(3)

	c.gateway.On("Send", mock.Anything, mock.Anything).Return(successResult(), nil).Times(3)
	c.deliveryRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Times(3)

	start := time.Now()
	_, err := c.dispatcher.Dispatch(context.Background(), DispatchInput{
		Template:   testTemplate(),
		Recipients: members,
		Mode:       ModeProduction,
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond,
		"three sends require at least two inter-send intervals")
}

func TestDispatch_ValidationRejectedBeforeAnySend(t *testing.T) {
	c := setupDispatcherTest(t)

	_, err := c.dispatcher.Dispatch(context.Background(), DispatchInput{
		Template:   template.MessageTemplate{Subject: "", HTML: "<p>x</p>"},
		Recipients: testMembers(2),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = c.dispatcher.Dispatch(context.Background(), DispatchInput{
		Template:   template.MessageTemplate{Subject: "x"},
		Recipients: testMembers(2),
	})
	assert.ErrorIs(t, err, domain.ErrValidation)

	c.gateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDispatch_PreviewMutatesNothing(t *testing.T) {
	c := setupDispatcherTest(t)
	members := testMembers(2)
	campaignID := uuid.New()
	automationID := uuid.New()

	c.gateway.On("Send", mock.Anything, mock.Anything).Return(successResult(), nil).Times(2)

	summary, err := c.dispatcher.Dispatch(context.Background(), DispatchInput{
		Template:     testTemplate(),
		Recipients:   members,
		Mode:         ModePreview,
		CampaignID:   &campaignID,
		AutomationID: &automationID,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sent)

	c.deliveryRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	c.campaignRepo.AssertNotCalled(t, "IncrementCounters", mock.Anything, mock.Anything, mock.Anything)
	c.autoRepo.AssertNotCalled(t, "RecordSend", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatch_ProductionWritesDeliveryLogs(t *testing.T) {
	c := setupDispatcherTest(t)
	members := testMembers(2)
	automationID := uuid.New()

	c.gateway.On("Send", mock.Anything, mock.MatchedBy(func(r mailer.SendRequest) bool {
		return r.To == members[0].Email
	})).Return(successResult(), nil).Once()
	c.gateway.On("Send", mock.Anything, mock.MatchedBy(func(r mailer.SendRequest) bool {
		return r.To == members[1].Email
	})).Return(&mailer.SendResult{Success: false, ErrorMessage: "mailbox full"}, nil).Once()

	var logs []*trackingdomain.DeliveryLog
	c.deliveryRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		logs = append(logs, args.Get(1).(*trackingdomain.DeliveryLog))
	}).Return(nil).Times(2)
	c.autoRepo.On("RecordSend", mock.Anything, automationID, 1, mock.Anything).Return(nil).Once()

	summary, err := c.dispatcher.Dispatch(context.Background(), DispatchInput{
		Template:     testTemplate(),
		Recipients:   members,
		Mode:         ModeProduction,
		AutomationID: &automationID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)

	require.Len(t, logs, 2)
	assert.Equal(t, trackingdomain.StatusSent, logs[0].Status)
	assert.NotEmpty(t, logs[0].ProviderMessageID)
	assert.Equal(t, trackingdomain.StatusFailed, logs[1].Status)
	assert.Equal(t, "mailbox full", logs[1].ErrorMessage)
	c.autoRepo.AssertExpectations(t)
}

func TestDispatch_PersonalizationScopeReachesRenderedMessage(t *testing.T) {
	c := setupDispatcherTest(t)
	members := testMembers(1)
	members[0].Name = "Alex"

	var sent mailer.SendRequest
	c.gateway.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(mailer.SendRequest)
	}).Return(successResult(), nil).Once()
	c.deliveryRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := c.dispatcher.Dispatch(context.Background(), DispatchInput{
		Template: template.MessageTemplate{
			Subject: "Hi {{user_name}}, {{submission_count}} submissions",
			HTML:    "<a href=\"{{unsubscribe_url}}\">bye</a>",
		},
		Recipients: members,
		Mode:       ModeProduction,
		Personalize: func(m *memberdomain.Member) map[string]any {
			return map[string]any{"submission_count": 7}
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Hi Alex, 7 submissions", sent.Subject)
	assert.Contains(t, sent.HTML, "https://colorcompete.example/unsubscribe?token=")
	assert.NotContains(t, sent.HTML, "{{unsubscribe_url}}")
}

func TestDispatch_TriggerContextFillsUnknownRecipientTier(t *testing.T) {
	c := setupDispatcherTest(t)
	members := testMembers(1)
	members[0].Tier = "" // winner snapshots carry the tier in the trigger context

	var sent mailer.SendRequest
	c.gateway.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		sent = args.Get(1).(mailer.SendRequest)
	}).Return(successResult(), nil).Once()
	c.deliveryRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := c.dispatcher.Dispatch(context.Background(), DispatchInput{
		Template: template.MessageTemplate{
			Subject: "Results of the {{subscription_tier}} drawing",
			HTML:    "<p>You entered the {{subscription_tier}} drawing.</p>",
		},
		Recipients:     members,
		Mode:           ModeProduction,
		TriggerContext: map[string]any{"tier": memberdomain.TierLite},
	})
	require.NoError(t, err)

	assert.Equal(t, "Results of the lite drawing", sent.Subject)
	assert.Contains(t, sent.HTML, "the lite drawing")
}

func TestDispatch_CancelledMidBatchCountsOnlyProcessed(t *testing.T) {
	c := setupDispatcherTest(t)
	c.dispatcher.cfg.SendInterval = time.Hour // the ticker never fires; cancellation wins the select
	members := testMembers(3)
	campaignID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.gateway.On("Send", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		cancel()
	}).Return(successResult(), nil).Once()
	c.deliveryRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	c.campaignRepo.On("IncrementCounters", mock.Anything, campaignID, domain.CounterDelta{Recipients: 1, Sent: 1}).Return(nil).Once()

	summary, err := c.dispatcher.Dispatch(ctx, DispatchInput{
		Template:   testTemplate(),
		Recipients: members,
		Mode:       ModeProduction,
		CampaignID: &campaignID,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Attempted, "the unattempted remainder is not counted")
	assert.Equal(t, 1, summary.Sent)
	require.Len(t, summary.Results, 3)
	assert.True(t, summary.Results[0].Success)
	assert.NotEmpty(t, summary.Results[1].Error)
	assert.NotEmpty(t, summary.Results[2].Error)
	c.campaignRepo.AssertExpectations(t)
}

func TestDispatchCampaign_DraftGoesSendingThenSent(t *testing.T) {
	c := setupDispatcherTest(t)
	members := testMembers(2)
	campaign := &domain.Campaign{
		ID:       uuid.New(),
		Name:     "launch",
		Template: testTemplate(),
		Audience: domain.Audience{Type: domain.AudienceTiers, Tiers: []string{memberdomain.TierLite}},
		Status:   domain.StatusDraft,
	}

	c.campaignRepo.On("GetByID", mock.Anything, campaign.ID).Return(campaign, nil).Once()
	c.memberRepo.On("ListByTiers", mock.Anything, []string{memberdomain.TierLite}).Return(members, nil).Once()
	c.campaignRepo.On("TransitionStatus", mock.Anything, campaign.ID, domain.StatusDraft, domain.StatusSending).Return(nil).Once()
	c.gateway.On("Send", mock.Anything, mock.Anything).Return(successResult(), nil).Times(2)
	c.deliveryRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Times(2)
	c.campaignRepo.On("IncrementCounters", mock.Anything, campaign.ID, domain.CounterDelta{Recipients: 2, Sent: 2}).Return(nil).Once()
	c.campaignRepo.On("TransitionStatus", mock.Anything, campaign.ID, domain.StatusSending, domain.StatusSent).Return(nil).Once()

	summary, err := c.dispatcher.DispatchCampaign(context.Background(), campaign.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Sent)
	c.campaignRepo.AssertExpectations(t)
}

func TestDispatchCampaign_AllSendsFailedMarksFailed(t *testing.T) {
	c := setupDispatcherTest(t)
	members := testMembers(2)
	campaign := &domain.Campaign{
		ID:       uuid.New(),
		Template: testTemplate(),
		Audience: domain.Audience{Type: domain.AudienceAll},
		Status:   domain.StatusDraft,
	}

	c.campaignRepo.On("GetByID", mock.Anything, campaign.ID).Return(campaign, nil).Once()
	c.memberRepo.On("ListActive", mock.Anything).Return(members, nil).Once()
	c.campaignRepo.On("TransitionStatus", mock.Anything, campaign.ID, domain.StatusDraft, domain.StatusSending).Return(nil).Once()
	c.gateway.On("Send", mock.Anything, mock.Anything).Return(nil, assert.AnError).Times(2)
	c.deliveryRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Times(2)
	c.campaignRepo.On("IncrementCounters", mock.Anything, campaign.ID, domain.CounterDelta{Recipients: 2, Sent: 0}).Return(nil).Once()
	c.campaignRepo.On("TransitionStatus", mock.Anything, campaign.ID, domain.StatusSending, domain.StatusFailed).Return(nil).Once()

	summary, err := c.dispatcher.DispatchCampaign(context.Background(), campaign.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Sent)
	c.campaignRepo.AssertExpectations(t)
}

func TestDispatchCampaign_AlreadySentIsNotDispatchable(t *testing.T) {
	c := setupDispatcherTest(t)
	campaign := &domain.Campaign{
		ID:       uuid.New(),
		Template: testTemplate(),
		Status:   domain.StatusSent,
		Audience: domain.Audience{Type: domain.AudienceAll},
	}

	c.campaignRepo.On("GetByID", mock.Anything, campaign.ID).Return(campaign, nil).Once()
	c.memberRepo.On("ListActive", mock.Anything).Return(testMembers(1), nil).Once()

	_, err := c.dispatcher.DispatchCampaign(context.Background(), campaign.ID, false)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	c.gateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDispatchCampaign_PreviewSkipsStatusTransitions(t *testing.T) {
	c := setupDispatcherTest(t)
	members := testMembers(1)
	campaign := &domain.Campaign{
		ID:       uuid.New(),
		Template: testTemplate(),
		Audience: domain.Audience{Type: domain.AudienceAll},
		Status:   domain.StatusSent, // previews work even on already-sent campaigns
	}

	c.campaignRepo.On("GetByID", mock.Anything, campaign.ID).Return(campaign, nil).Once()
	c.memberRepo.On("ListActive", mock.Anything).Return(members, nil).Once()
	c.gateway.On("Send", mock.Anything, mock.Anything).Return(successResult(), nil).Once()

	summary, err := c.dispatcher.DispatchCampaign(context.Background(), campaign.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Sent)
	c.campaignRepo.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	c.campaignRepo.AssertNotCalled(t, "IncrementCounters", mock.Anything, mock.Anything, mock.Anything)
}

func TestDispatchAutomation_MemberContextTargetsSingleRecipient(t *testing.T) {
	c := setupDispatcherTest(t)
	winner := testMembers(1)[0]
	automation := &autodomain.Automation{
		ID:          uuid.New(),
		IsActive:    true,
		TriggerType: autodomain.TriggerContestWinner,
		Template:    testTemplate(),
	}

	c.autoRepo.On("GetByID", mock.Anything, automation.ID).Return(automation, nil).Once()
	c.memberRepo.On("GetByID", mock.Anything, winner.ID).Return(winner, nil).Once()
	c.gateway.On("Send", mock.Anything, mock.MatchedBy(func(r mailer.SendRequest) bool {
		return r.To == winner.Email
	})).Return(successResult(), nil).Once()
	c.deliveryRepo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	c.autoRepo.On("RecordSend", mock.Anything, automation.ID, 1, mock.Anything).Return(nil).Once()

	summary, err := c.dispatcher.DispatchAutomation(context.Background(), automation.ID,
		map[string]any{"member_id": winner.ID.String(), "contest_name": "March"}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Attempted)
	assert.Equal(t, 1, summary.Sent)
	c.memberRepo.AssertNotCalled(t, "ListActive", mock.Anything)
}

func TestDispatchAutomation_DeactivatedSkipsQuietly(t *testing.T) {
	c := setupDispatcherTest(t)
	automation := &autodomain.Automation{
		ID:       uuid.New(),
		IsActive: false,
		Template: testTemplate(),
	}

	c.autoRepo.On("GetByID", mock.Anything, automation.ID).Return(automation, nil).Once()

	summary, err := c.dispatcher.DispatchAutomation(context.Background(), automation.ID, nil, false)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Attempted)
	c.gateway.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestUnsubscribeToken_RoundTrip(t *testing.T) {
	memberID := uuid.New()
	token, err := NewUnsubscribeToken(memberID, "secret", time.Now())
	require.NoError(t, err)

	parsed, err := ParseUnsubscribeToken(token, "secret")
	require.NoError(t, err)
	assert.Equal(t, memberID, parsed)
}

func TestUnsubscribeToken_WrongSecretRejected(t *testing.T) {
	token, err := NewUnsubscribeToken(uuid.New(), "secret", time.Now())
	require.NoError(t, err)

	_, err = ParseUnsubscribeToken(token, "other-secret")
	assert.Error(t, err)
}
