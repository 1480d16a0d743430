package service

import (
	"context"

	"github.com/rs/zerolog/log"

	apperrors "github.com/clinicdesk/whatsapp-server-go/internal/errors"
	"github.com/clinicdesk/whatsapp-server-go/internal/model"
	"github.com/clinicdesk/whatsapp-server-go/internal/observability"
	"github.com/clinicdesk/whatsapp-server-go/internal/repository"
	"github.com/clinicdesk/whatsapp-server-go/internal/sse"
	"github.com/clinicdesk/whatsapp-server-go/internal/util"
	"github.com/clinicdesk/whatsapp-server-go/internal/whatsapp"
)

// IngestService turns raw webhook deliveries into conversation state. It is
// safe under redelivery: the provider message id dedupes inbound rows, and
// the conversation upsert converges concurrent deliveries.
type IngestService struct {
	credRepo      repository.CredentialRepository
	msgRepo       repository.MessageRepository
	routingRepo   repository.RoutingRepository
	directoryRepo repository.DirectoryRepository
	conversations *ConversationService
	chatbot       *ChatbotService
	media         *MediaService
	broker        *sse.Broker

	// singleTenantFallback routes deliveries with an unknown phone number id
	// to the sole connected credential. Only sensible on single-tenant
	// installs; off by default.
	singleTenantFallback bool
}

func NewIngestService(
	credRepo repository.CredentialRepository,
	msgRepo repository.MessageRepository,
	routingRepo repository.RoutingRepository,
	directoryRepo repository.DirectoryRepository,
	conversations *ConversationService,
	chatbot *ChatbotService,
	media *MediaService,
	broker *sse.Broker,
	singleTenantFallback bool,
) *IngestService {
	return &IngestService{
		credRepo:             credRepo,
		msgRepo:              msgRepo,
		routingRepo:          routingRepo,
		directoryRepo:        directoryRepo,
		conversations:        conversations,
		chatbot:              chatbot,
		media:                media,
		broker:               broker,
		singleTenantFallback: singleTenantFallback,
	}
}

// ProcessDelivery handles one webhook POST body. Always called after the
// endpoint has already acknowledged 200; failures here are logged, never
// surfaced to the provider.
func (s *IngestService) ProcessDelivery(ctx context.Context, body []byte) error {
	payload, err := whatsapp.ParsePayload(body)
	if err != nil {
		observability.WebhookDeliveries.WithLabelValues("malformed").Inc()
		return apperrors.MalformedPayload(err)
	}

	processed := false
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if !change.HasMessages() {
				// delivery/read status callbacks carry no messages
				continue
			}

			cred, err := s.resolveTenant(ctx, change.Value.Metadata.PhoneNumberID)
			if err != nil {
				return err
			}
			if cred == nil {
				observability.WebhookDeliveries.WithLabelValues("unresolved_tenant").Inc()
				log.Warn().
					Str("phoneNumberId", change.Value.Metadata.PhoneNumberID).
					Msg("webhook delivery for unknown phone number id dropped")
				continue
			}

			for _, raw := range change.Value.Messages {
				if err := s.processMessage(ctx, cred, change.Value.Contacts, raw); err != nil {
					log.Error().Err(err).
						Str("providerMessageId", raw.ID).
						Str("tenantId", cred.TenantID).
						Msg("inbound message processing failed")
					continue
				}
				processed = true
			}
		}
	}

	if processed {
		observability.WebhookDeliveries.WithLabelValues("ok").Inc()
	} else {
		observability.WebhookDeliveries.WithLabelValues("empty").Inc()
	}
	return nil
}

func (s *IngestService) resolveTenant(ctx context.Context, phoneNumberID string) (*model.ChannelCredential, error) {
	cred, err := s.credRepo.FindConnected(ctx, model.ChannelWhatsAppCloud, phoneNumberID)
	if err != nil {
		return nil, err
	}
	if cred != nil || !s.singleTenantFallback {
		return cred, nil
	}

	all, err := s.credRepo.ListConnectedByChannel(ctx, model.ChannelWhatsAppCloud)
	if err != nil {
		return nil, err
	}
	if len(all) == 1 {
		return &all[0], nil
	}
	return nil, nil
}

func (s *IngestService) processMessage(ctx context.Context, cred *model.ChannelCredential, contacts []whatsapp.Contact, raw whatsapp.RawMessage) error {
	norm := whatsapp.Normalize(raw, contacts)
	address := util.NormalizeAddress(norm.From)

	var body, mediaURL *string
	if norm.MediaID != "" {
		mediaURL = s.media.FetchAndPersist(ctx, cred, norm.MediaID, norm.MimeType)
		if mediaURL == nil {
			placeholder := whatsapp.Placeholder(norm.Type)
			body = &placeholder
		} else if norm.Body != "" {
			caption := norm.Body
			body = &caption
		}
	} else if norm.Body != "" {
		text := norm.Body
		body = &text
	}

	params := model.ResolveConversationParams{
		TenantID: cred.TenantID,
		Address:  address,
	}
	if norm.DisplayName != "" {
		name := norm.DisplayName
		params.DisplayName = &name
	}

	conv, isNew, err := s.conversations.ResolveOrCreate(ctx, params)
	if err != nil {
		return err
	}

	msgParams := model.CreateInboundMessageParams{
		TenantID:       cred.TenantID,
		ConversationID: conv.ID,
		Type:           norm.Type,
		Body:           body,
		MediaURL:       mediaURL,
		SentAt:         norm.SentAt,
	}
	if norm.ProviderID != "" {
		msgParams.ProviderMessageID = &norm.ProviderID
	}

	msg, err := s.msgRepo.CreateInbound(ctx, msgParams)
	if err != nil {
		return err
	}
	if msg == nil {
		// redelivered message; everything below already happened
		observability.InboundMessages.WithLabelValues(string(norm.Type), "duplicate").Inc()
		return nil
	}
	observability.InboundMessages.WithLabelValues(string(norm.Type), "ok").Inc()

	if s.broker != nil {
		if err := s.broker.Publish(ctx, cred.TenantID, sse.Event{Type: "message.created", Data: msg.ToEventData()}); err != nil {
			log.Warn().Err(err).Str("conversationId", conv.ID).Msg("publish inbound message event failed")
		}
	}

	// routing failures must not fail ingestion: the message is stored, an
	// admin can still assign by hand
	if err := s.route(ctx, conv, norm.Body, isNew); err != nil {
		log.Error().Err(err).Str("conversationId", conv.ID).Msg("routing inbound message failed")
	}
	return nil
}

func (s *IngestService) route(ctx context.Context, conv *model.Conversation, inputBody string, isNew bool) error {
	if !isNew {
		if conv.AssignedOperatorID == nil && conv.ChatbotStep != nil && *conv.ChatbotStep != model.StepDone {
			return s.chatbot.Advance(ctx, conv, inputBody)
		}
		return nil
	}

	settings, err := s.routingRepo.GetSettings(ctx, conv.TenantID)
	if err != nil {
		return err
	}
	operators, err := s.directoryRepo.ListOperators(ctx, conv.TenantID)
	if err != nil {
		return err
	}
	openCounts, err := s.routingRepo.OpenCounts(ctx, conv.TenantID)
	if err != nil {
		return err
	}

	decision := Decide(settings, operators, openCounts)
	switch decision.Kind {
	case AssignTo:
		if err := s.conversations.convRepo.SetAssignee(ctx, conv.ID, &decision.OperatorID); err != nil {
			return err
		}
		conv.AssignedOperatorID = &decision.OperatorID
		s.conversations.publish(ctx, conv.TenantID, "conversation.assigned", conv)
		return nil
	case DeferToChatbot:
		return s.chatbot.Greet(ctx, conv)
	default:
		// pool: stays unassigned until an operator claims it
		return nil
	}
}
