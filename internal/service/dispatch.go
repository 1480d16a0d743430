package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/clinicdesk/whatsapp-server-go/internal/errors"
	"github.com/clinicdesk/whatsapp-server-go/internal/model"
	"github.com/clinicdesk/whatsapp-server-go/internal/observability"
	"github.com/clinicdesk/whatsapp-server-go/internal/repository"
	"github.com/clinicdesk/whatsapp-server-go/internal/sse"
	"github.com/clinicdesk/whatsapp-server-go/internal/whatsapp"
)

// ProviderClient is the outbound side of the messaging provider.
type ProviderClient interface {
	SendText(ctx context.Context, cred *model.ChannelCredential, to, body string) (string, error)
	SendTemplate(ctx context.Context, cred *model.ChannelCredential, to, name, language string, params []string) (string, error)
}

// DispatchService sends outbound messages: provider call first, then the
// local append. A message never appears in history unless the provider
// accepted it.
type DispatchService struct {
	credRepo    repository.CredentialRepository
	msgRepo     repository.MessageRepository
	convRepo    repository.ConversationRepository
	routingRepo repository.RoutingRepository
	client      ProviderClient
	guard       *WindowGuard
	broker      *sse.Broker
}

func NewDispatchService(
	credRepo repository.CredentialRepository,
	msgRepo repository.MessageRepository,
	convRepo repository.ConversationRepository,
	routingRepo repository.RoutingRepository,
	client ProviderClient,
	guard *WindowGuard,
	broker *sse.Broker,
) *DispatchService {
	return &DispatchService{
		credRepo:    credRepo,
		msgRepo:     msgRepo,
		convRepo:    convRepo,
		routingRepo: routingRepo,
		client:      client,
		guard:       guard,
		broker:      broker,
	}
}

// SendFreeform sends a free-form text message on the conversation. Rejected
// with OUTSIDE_WINDOW when the customer-service window has lapsed.
func (s *DispatchService) SendFreeform(ctx context.Context, conv *model.Conversation, body string) (*model.Message, error) {
	if body == "" {
		return nil, apperrors.MissingRequired("body")
	}
	if !s.guard.CanSendFreeForm(conv) {
		observability.WindowRejections.Inc()
		return nil, apperrors.OutsideWindow()
	}

	cred, err := s.connectedCredential(ctx, conv.TenantID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	providerID, err := s.client.SendText(ctx, cred, conv.Address, body)
	observability.SendLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.OutboundSends.WithLabelValues("freeform", "error").Inc()
		return nil, s.mapSendError(ctx, cred, err)
	}
	observability.OutboundSends.WithLabelValues("freeform", "ok").Inc()

	return s.record(ctx, conv, &body, providerID)
}

// SendFreeformAs sends a free-form message on behalf of an operator. Under
// first-responder routing the first operator to reply on an unassigned
// conversation becomes its assignee, racing explicit claims on the same
// compare-and-set.
func (s *DispatchService) SendFreeformAs(ctx context.Context, conv *model.Conversation, operatorID, body string) (*model.Message, error) {
	msg, err := s.SendFreeform(ctx, conv, body)
	if err != nil {
		return nil, err
	}
	s.claimOnReply(ctx, conv, operatorID)
	return msg, nil
}

// claimOnReply is best-effort: losing the race or a storage error never
// fails the send that already went out.
func (s *DispatchService) claimOnReply(ctx context.Context, conv *model.Conversation, operatorID string) {
	if operatorID == "" || conv.AssignedOperatorID != nil {
		return
	}

	won, err := s.convRepo.Claim(ctx, conv.ID, operatorID)
	if err != nil {
		log.Warn().Err(err).Str("conversationId", conv.ID).Msg("claim on reply failed")
		return
	}
	if !won {
		return
	}

	if err := s.routingRepo.ClearEligible(ctx, conv.ID); err != nil {
		log.Warn().Err(err).Str("conversationId", conv.ID).Msg("clear eligible operators failed")
	}
	conv.AssignedOperatorID = &operatorID

	if s.broker != nil {
		if data, err := json.Marshal(conv); err == nil {
			if err := s.broker.Publish(ctx, conv.TenantID, sse.Event{Type: "conversation.assigned", Data: data}); err != nil {
				log.Warn().Err(err).Str("conversationId", conv.ID).Msg("publish assignment event failed")
			}
		}
	}
}

// SendTemplate sends a pre-approved template message; the window guard does
// not apply.
func (s *DispatchService) SendTemplate(ctx context.Context, conv *model.Conversation, name, language string, params []string) (*model.Message, error) {
	if name == "" {
		return nil, apperrors.MissingRequired("template")
	}
	if language == "" {
		language = "pt_BR"
	}

	cred, err := s.connectedCredential(ctx, conv.TenantID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	providerID, err := s.client.SendTemplate(ctx, cred, conv.Address, name, language, params)
	observability.SendLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.OutboundSends.WithLabelValues("template", "error").Inc()
		return nil, s.mapSendError(ctx, cred, err)
	}
	observability.OutboundSends.WithLabelValues("template", "ok").Inc()

	rendered := "[template: " + name + "]"
	return s.record(ctx, conv, &rendered, providerID)
}

func (s *DispatchService) connectedCredential(ctx context.Context, tenantID string) (*model.ChannelCredential, error) {
	cred, err := s.credRepo.FindConnectedByTenant(ctx, tenantID, model.ChannelWhatsAppCloud)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, apperrors.NotFound("channel credential")
	}
	return cred, nil
}

// mapSendError translates provider failures. Auth-class failures also mark
// the tenant credential unhealthy so the UI can prompt a reconnect.
func (s *DispatchService) mapSendError(ctx context.Context, cred *model.ChannelCredential, err error) error {
	var sendErr *whatsapp.SendError
	if errors.As(err, &sendErr) {
		if sendErr.IsAuth() {
			if markErr := s.credRepo.MarkError(ctx, cred.ID); markErr != nil {
				log.Error().Err(markErr).Str("credentialId", cred.ID).Msg("mark credential error failed")
			}
			return apperrors.AuthExpired()
		}
		return apperrors.Provider(sendErr.Message)
	}
	return apperrors.Provider(err.Error())
}

func (s *DispatchService) record(ctx context.Context, conv *model.Conversation, body *string, providerID string) (*model.Message, error) {
	params := model.CreateOutboundMessageParams{
		TenantID:       conv.TenantID,
		ConversationID: conv.ID,
		Type:           model.MessageTypeText,
		Body:           body,
	}
	if providerID != "" {
		params.ProviderMessageID = &providerID
	}

	msg, err := s.msgRepo.CreateOutbound(ctx, params)
	if err != nil {
		// sent but not recorded; surface the write failure
		return nil, err
	}

	if s.broker != nil {
		if err := s.broker.Publish(ctx, conv.TenantID, sse.Event{Type: "message.created", Data: msg.ToEventData()}); err != nil {
			log.Warn().Err(err).Str("conversationId", conv.ID).Msg("publish outbound message event failed")
		}
	}
	return msg, nil
}
