package service

import (
	"context"
	"time"

	apperrors "github.com/clinicdesk/whatsapp-server-go/internal/errors"
	"github.com/clinicdesk/whatsapp-server-go/internal/model"
	"github.com/clinicdesk/whatsapp-server-go/internal/repository"
)

// VisibilityService projects the conversation list each user is allowed to
// see. Admins see the whole tenant; operators see what is theirs plus the
// unassigned conversations they could pick up.
type VisibilityService struct {
	convRepo      repository.ConversationRepository
	msgRepo       repository.MessageRepository
	routingRepo   repository.RoutingRepository
	watermarkRepo repository.WatermarkRepository
}

func NewVisibilityService(
	convRepo repository.ConversationRepository,
	msgRepo repository.MessageRepository,
	routingRepo repository.RoutingRepository,
	watermarkRepo repository.WatermarkRepository,
) *VisibilityService {
	return &VisibilityService{
		convRepo:      convRepo,
		msgRepo:       msgRepo,
		routingRepo:   routingRepo,
		watermarkRepo: watermarkRepo,
	}
}

// ListVisible returns the user's conversation list with unread counts, most
// recently active first.
func (s *VisibilityService) ListVisible(ctx context.Context, user *model.Operator) ([]model.ConversationSummary, error) {
	convs, err := s.convRepo.ListByTenant(ctx, user.TenantID)
	if err != nil {
		return nil, err
	}

	settings, err := s.routingRepo.GetSettings(ctx, user.TenantID)
	if err != nil {
		return nil, err
	}

	eligible, err := s.routingRepo.EligibleByTenant(ctx, user.TenantID)
	if err != nil {
		return nil, err
	}

	unread, err := s.msgRepo.UnreadCounts(ctx, user.TenantID, user.ID)
	if err != nil {
		return nil, err
	}

	summaries := make([]model.ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		if !visibleTo(&conv, user, settings, eligible[conv.ID]) {
			continue
		}
		summaries = append(summaries, model.ConversationSummary{
			Conversation: conv,
			UnreadCount:  unread[conv.ID],
		})
	}
	return summaries, nil
}

// ListMessages returns a page of a conversation's history, oldest first,
// after the same visibility check as the list view.
func (s *VisibilityService) ListMessages(ctx context.Context, user *model.Operator, conversationID string, limit, offset int) ([]model.Message, error) {
	conv, err := s.visibleConversation(ctx, user, conversationID)
	if err != nil {
		return nil, err
	}
	return s.msgRepo.ListByConversation(ctx, conv.ID, limit, offset)
}

// MarkViewed advances the user's read watermark on the conversation. The
// watermark only moves forward.
func (s *VisibilityService) MarkViewed(ctx context.Context, user *model.Operator, conversationID string, viewedAt time.Time) error {
	conv, err := s.visibleConversation(ctx, user, conversationID)
	if err != nil {
		return err
	}
	return s.watermarkRepo.Upsert(ctx, user.ID, conv.ID, viewedAt)
}

func (s *VisibilityService) visibleConversation(ctx context.Context, user *model.Operator, conversationID string) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil || conv.TenantID != user.TenantID {
		return nil, apperrors.NotFound("conversation")
	}

	settings, err := s.routingRepo.GetSettings(ctx, conv.TenantID)
	if err != nil {
		return nil, err
	}
	eligible, err := s.routingRepo.EligibleByConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !visibleTo(conv, user, settings, eligible) {
		return nil, apperrors.NotFound("conversation")
	}
	return conv, nil
}

// visibleTo applies the projection rule: admins see everything; an operator
// sees their own conversations, plus unassigned ones that are either in the
// open pool (no eligible set) or in an eligible set containing them. Under
// general_secretary the unassigned backlog belongs to the designated
// operator alone.
func visibleTo(conv *model.Conversation, user *model.Operator, settings *model.RoutingSettings, eligible []string) bool {
	if user.Role == model.RoleAdmin {
		return true
	}
	if conv.AssignedOperatorID != nil {
		return *conv.AssignedOperatorID == user.ID
	}
	if settings != nil && settings.Strategy == model.StrategyGeneralSecretary && settings.SecretaryID != nil {
		return *settings.SecretaryID == user.ID
	}
	if len(eligible) == 0 {
		return true
	}
	for _, id := range eligible {
		if id == user.ID {
			return true
		}
	}
	return false
}
