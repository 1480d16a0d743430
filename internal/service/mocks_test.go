package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/clinicdesk/whatsapp-server-go/internal/model"
)

type mockConversationRepo struct {
	mock.Mock
}

func (m *mockConversationRepo) FindByID(ctx context.Context, id string) (*model.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) FindByAddress(ctx context.Context, tenantID, address string) (*model.Conversation, error) {
	args := m.Called(ctx, tenantID, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) ListByTenant(ctx context.Context, tenantID string) ([]model.Conversation, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Conversation), args.Error(1)
}

func (m *mockConversationRepo) ResolveOrCreate(ctx context.Context, params model.ResolveConversationParams) (*model.Conversation, bool, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*model.Conversation), args.Bool(1), args.Error(2)
}

func (m *mockConversationRepo) Claim(ctx context.Context, id, operatorID string) (bool, error) {
	args := m.Called(ctx, id, operatorID)
	return args.Bool(0), args.Error(1)
}

func (m *mockConversationRepo) SetAssignee(ctx context.Context, id string, operatorID *string) error {
	args := m.Called(ctx, id, operatorID)
	return args.Error(0)
}

func (m *mockConversationRepo) SetChatbotStep(ctx context.Context, id string, step *model.ChatbotStep) error {
	args := m.Called(ctx, id, step)
	return args.Error(0)
}

func (m *mockConversationRepo) SetStatus(ctx context.Context, id string, status model.ConversationStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *mockConversationRepo) SetPatientRecord(ctx context.Context, id, recordID string) error {
	args := m.Called(ctx, id, recordID)
	return args.Error(0)
}

func (m *mockConversationRepo) CloseIdle(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockConversationRepo) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockMessageRepo struct {
	mock.Mock
}

func (m *mockMessageRepo) CreateInbound(ctx context.Context, params model.CreateInboundMessageParams) (*model.Message, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockMessageRepo) CreateOutbound(ctx context.Context, params model.CreateOutboundMessageParams) (*model.Message, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *mockMessageRepo) ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	args := m.Called(ctx, conversationID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Message), args.Error(1)
}

func (m *mockMessageRepo) UnreadCounts(ctx context.Context, tenantID, userID string) (map[string]int, error) {
	args := m.Called(ctx, tenantID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *mockMessageRepo) UnreadCount(ctx context.Context, userID, conversationID string) (int, error) {
	args := m.Called(ctx, userID, conversationID)
	return args.Int(0), args.Error(1)
}

type mockRoutingRepo struct {
	mock.Mock
}

func (m *mockRoutingRepo) GetSettings(ctx context.Context, tenantID string) (*model.RoutingSettings, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.RoutingSettings), args.Error(1)
}

func (m *mockRoutingRepo) OpenCounts(ctx context.Context, tenantID string) ([]model.OperatorOpenCount, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.OperatorOpenCount), args.Error(1)
}

func (m *mockRoutingRepo) SetEligible(ctx context.Context, conversationID string, operatorIDs []string) error {
	args := m.Called(ctx, conversationID, operatorIDs)
	return args.Error(0)
}

func (m *mockRoutingRepo) ClearEligible(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}

func (m *mockRoutingRepo) EligibleByConversation(ctx context.Context, conversationID string) ([]string, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockRoutingRepo) EligibleByTenant(ctx context.Context, tenantID string) (map[string][]string, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string][]string), args.Error(1)
}

type mockDirectoryRepo struct {
	mock.Mock
}

func (m *mockDirectoryRepo) ListOperators(ctx context.Context, tenantID string) ([]model.Operator, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Operator), args.Error(1)
}

func (m *mockDirectoryRepo) FindOperatorByID(ctx context.Context, id string) (*model.Operator, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Operator), args.Error(1)
}

func (m *mockDirectoryRepo) FindOperatorByTokenHash(ctx context.Context, tokenHash string) (*model.Operator, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Operator), args.Error(1)
}

func (m *mockDirectoryRepo) ListProcedures(ctx context.Context, tenantID string) ([]model.Procedure, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Procedure), args.Error(1)
}

func (m *mockDirectoryRepo) OperatorsForProcedure(ctx context.Context, tenantID, procedureID string) ([]model.Operator, error) {
	args := m.Called(ctx, tenantID, procedureID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Operator), args.Error(1)
}

func (m *mockDirectoryRepo) OperatorForProfessional(ctx context.Context, professionalID string) (*string, error) {
	args := m.Called(ctx, professionalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

type mockCredentialRepo struct {
	mock.Mock
}

func (m *mockCredentialRepo) FindConnected(ctx context.Context, channel, phoneNumberID string) (*model.ChannelCredential, error) {
	args := m.Called(ctx, channel, phoneNumberID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ChannelCredential), args.Error(1)
}

func (m *mockCredentialRepo) ListConnectedByChannel(ctx context.Context, channel string) ([]model.ChannelCredential, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ChannelCredential), args.Error(1)
}

func (m *mockCredentialRepo) FindConnectedByTenant(ctx context.Context, tenantID, channel string) (*model.ChannelCredential, error) {
	args := m.Called(ctx, tenantID, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ChannelCredential), args.Error(1)
}

func (m *mockCredentialRepo) MarkError(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockPatientRepo struct {
	mock.Mock
}

func (m *mockPatientRepo) FindByNormalizedAddress(ctx context.Context, tenantID, address string) (*model.PatientRecord, error) {
	args := m.Called(ctx, tenantID, address)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.PatientRecord), args.Error(1)
}

func (m *mockPatientRepo) LatestEngagementProfessional(ctx context.Context, recordID string) (*string, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*string), args.Error(1)
}

type mockWatermarkRepo struct {
	mock.Mock
}

func (m *mockWatermarkRepo) Upsert(ctx context.Context, userID, conversationID string, viewedAt time.Time) error {
	args := m.Called(ctx, userID, conversationID, viewedAt)
	return args.Error(0)
}

func (m *mockWatermarkRepo) Find(ctx context.Context, userID, conversationID string) (*model.ViewWatermark, error) {
	args := m.Called(ctx, userID, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ViewWatermark), args.Error(1)
}

// mockSender records chatbot replies without touching the provider.
type mockSender struct {
	sent []string
}

func (m *mockSender) SendFreeform(ctx context.Context, conv *model.Conversation, body string) (*model.Message, error) {
	m.sent = append(m.sent, body)
	return &model.Message{ID: "msg-out", ConversationID: conv.ID, Direction: model.DirectionOutbound}, nil
}

type mockProviderClient struct {
	mock.Mock
}

func (m *mockProviderClient) SendText(ctx context.Context, cred *model.ChannelCredential, to, body string) (string, error) {
	args := m.Called(ctx, cred, to, body)
	return args.String(0), args.Error(1)
}

func (m *mockProviderClient) SendTemplate(ctx context.Context, cred *model.ChannelCredential, to, name, language string, params []string) (string, error) {
	args := m.Called(ctx, cred, to, name, language, params)
	return args.String(0), args.Error(1)
}
