package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/clinicdesk/whatsapp-server-go/internal/errors"
	"github.com/clinicdesk/whatsapp-server-go/internal/model"
	"github.com/clinicdesk/whatsapp-server-go/internal/repository"
	"github.com/clinicdesk/whatsapp-server-go/internal/sse"
	"github.com/clinicdesk/whatsapp-server-go/internal/storage"
)

const erasePageSize = 500

type ConversationService struct {
	convRepo      repository.ConversationRepository
	routingRepo   repository.RoutingRepository
	msgRepo       repository.MessageRepository
	directoryRepo repository.DirectoryRepository
	store         storage.ObjectStore
	mediaBaseURL  string
	broker        *sse.Broker
}

func NewConversationService(
	convRepo repository.ConversationRepository,
	routingRepo repository.RoutingRepository,
	msgRepo repository.MessageRepository,
	directoryRepo repository.DirectoryRepository,
	store storage.ObjectStore,
	mediaBaseURL string,
	broker *sse.Broker,
) *ConversationService {
	return &ConversationService{
		convRepo:      convRepo,
		routingRepo:   routingRepo,
		msgRepo:       msgRepo,
		directoryRepo: directoryRepo,
		store:         store,
		mediaBaseURL:  strings.TrimSuffix(mediaBaseURL, "/"),
		broker:        broker,
	}
}

// ResolveOrCreate converges concurrent webhook deliveries for the same
// counterparty onto one conversation row. isNew is true only for the call
// that actually inserted the row.
func (s *ConversationService) ResolveOrCreate(ctx context.Context, params model.ResolveConversationParams) (*model.Conversation, bool, error) {
	conv, isNew, err := s.convRepo.ResolveOrCreate(ctx, params)
	if err != nil {
		return nil, false, err
	}

	if isNew {
		s.publish(ctx, conv.TenantID, "conversation.created", conv)
	}
	return conv, isNew, nil
}

func (s *ConversationService) Find(ctx context.Context, tenantID, conversationID string) (*model.Conversation, error) {
	conv, err := s.convRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil || conv.TenantID != tenantID {
		return nil, apperrors.NotFound("conversation")
	}
	return conv, nil
}

// Claim atomically assigns an unassigned conversation to the calling
// operator. Exactly one of any set of concurrent claimers wins; the rest get
// ALREADY_ASSIGNED.
func (s *ConversationService) Claim(ctx context.Context, tenantID, conversationID, operatorID string) (*model.Conversation, error) {
	conv, err := s.Find(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}

	if conv.AssignedOperatorID != nil {
		return nil, apperrors.AlreadyAssigned()
	}

	won, err := s.convRepo.Claim(ctx, conversationID, operatorID)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, apperrors.AlreadyAssigned()
	}

	if err := s.routingRepo.ClearEligible(ctx, conversationID); err != nil {
		log.Warn().Err(err).Str("conversationId", conversationID).Msg("clear eligible set after claim failed")
	}

	conv.AssignedOperatorID = &operatorID
	s.publish(ctx, tenantID, "conversation.assigned", conv)
	return conv, nil
}

// Assign reassigns a conversation. Admins may reassign anything; a secretary
// may only hand off a conversation currently assigned to them.
func (s *ConversationService) Assign(ctx context.Context, tenantID, conversationID, targetOperatorID, actorID string, actorRole model.Role) (*model.Conversation, error) {
	conv, err := s.Find(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}

	if actorRole != model.RoleAdmin {
		if conv.AssignedOperatorID == nil || *conv.AssignedOperatorID != actorID {
			return nil, apperrors.Forbidden("only the current assignee can hand off this conversation")
		}
	}

	target, err := s.directoryRepo.FindOperatorByID(ctx, targetOperatorID)
	if err != nil {
		return nil, err
	}
	if target == nil || target.TenantID != tenantID {
		return nil, apperrors.NotFound("operator")
	}

	if err := s.convRepo.SetAssignee(ctx, conversationID, &targetOperatorID); err != nil {
		return nil, err
	}
	if err := s.routingRepo.ClearEligible(ctx, conversationID); err != nil {
		log.Warn().Err(err).Str("conversationId", conversationID).Msg("clear eligible set after assign failed")
	}

	conv.AssignedOperatorID = &targetOperatorID
	s.publish(ctx, tenantID, "conversation.assigned", conv)
	return conv, nil
}

func (s *ConversationService) Close(ctx context.Context, tenantID, conversationID string) (*model.Conversation, error) {
	conv, err := s.Find(ctx, tenantID, conversationID)
	if err != nil {
		return nil, err
	}

	if err := s.convRepo.SetStatus(ctx, conversationID, model.ConversationClosed); err != nil {
		return nil, err
	}

	conv.Status = model.ConversationClosed
	s.publish(ctx, tenantID, "conversation.closed", conv)
	return conv, nil
}

// CloseIdle closes open conversations whose last inbound message is older
// than the cutoff. Returns the number of conversations closed.
func (s *ConversationService) CloseIdle(ctx context.Context, before time.Time) (int64, error) {
	return s.convRepo.CloseIdle(ctx, before)
}

// Erase soft-deletes a conversation and removes its persisted media objects.
// Admin-only; the authorization check lives in the handler.
func (s *ConversationService) Erase(ctx context.Context, tenantID, conversationID string) error {
	conv, err := s.Find(ctx, tenantID, conversationID)
	if err != nil {
		return err
	}

	if s.store != nil {
		if err := s.eraseMedia(ctx, conv); err != nil {
			log.Warn().Err(err).Str("conversationId", conversationID).Msg("media erasure incomplete")
		}
	}

	if err := s.convRepo.Delete(ctx, conversationID); err != nil {
		return err
	}

	s.publish(ctx, tenantID, "conversation.deleted", map[string]string{"id": conversationID})
	return nil
}

func (s *ConversationService) eraseMedia(ctx context.Context, conv *model.Conversation) error {
	offset := 0
	for {
		messages, err := s.msgRepo.ListByConversation(ctx, conv.ID, erasePageSize, offset)
		if err != nil {
			return err
		}
		for _, msg := range messages {
			if msg.MediaURL == nil {
				continue
			}
			key := strings.TrimPrefix(*msg.MediaURL, s.mediaBaseURL+"/")
			if key == *msg.MediaURL {
				// not one of our objects; skip foreign URLs
				continue
			}
			if err := s.store.DeletePrefix(ctx, key); err != nil {
				return err
			}
		}
		if len(messages) < erasePageSize {
			return nil
		}
		offset += erasePageSize
	}
}

func (s *ConversationService) publish(ctx context.Context, tenantID, eventType string, payload any) {
	if s.broker == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := s.broker.Publish(ctx, tenantID, sse.Event{Type: eventType, Data: data}); err != nil {
		log.Warn().Err(err).Str("tenantId", tenantID).Str("event", eventType).Msg("publish event failed")
	}
}
