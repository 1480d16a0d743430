package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/clinicdesk/whatsapp-server-go/internal/model"
	"github.com/clinicdesk/whatsapp-server-go/internal/repository"
)

const (
	menuText = "Olá! Como podemos ajudar?\n" +
		"1. Agendar consulta\n" +
		"2. Remarcar consulta\n" +
		"3. Cancelar consulta\n" +
		"4. Falar com um atendente"

	handoffText      = "Certo! Um de nossos atendentes vai continuar o atendimento por aqui."
	patientCareText  = "Entendido! Nossa equipe vai te ajudar com isso em instantes."
	invalidChoiceMsg = "Opção inválida. Responda com o número de uma das opções abaixo.\n"
)

type replySender interface {
	SendFreeform(ctx context.Context, conv *model.Conversation, body string) (*model.Message, error)
}

// ChatbotService drives the menu flow for tenants on the chatbot strategy.
// State lives on the conversation row; each inbound message advances it by
// at most one step.
type ChatbotService struct {
	convRepo      repository.ConversationRepository
	routingRepo   repository.RoutingRepository
	directoryRepo repository.DirectoryRepository
	patientRepo   repository.PatientRepository
	sender        replySender
}

func NewChatbotService(
	convRepo repository.ConversationRepository,
	routingRepo repository.RoutingRepository,
	directoryRepo repository.DirectoryRepository,
	patientRepo repository.PatientRepository,
	sender replySender,
) *ChatbotService {
	return &ChatbotService{
		convRepo:      convRepo,
		routingRepo:   routingRepo,
		directoryRepo: directoryRepo,
		patientRepo:   patientRepo,
		sender:        sender,
	}
}

// Greet starts the flow on a brand-new conversation: the menu goes out
// immediately with the first inbound message.
func (s *ChatbotService) Greet(ctx context.Context, conv *model.Conversation) error {
	step := model.StepMenu
	if err := s.convRepo.SetChatbotStep(ctx, conv.ID, &step); err != nil {
		return err
	}
	conv.ChatbotStep = &step
	s.reply(ctx, conv, menuText)
	return nil
}

// Advance feeds one inbound message body into the flow. No-op once the flow
// is done or the conversation has an operator.
func (s *ChatbotService) Advance(ctx context.Context, conv *model.Conversation, input string) error {
	if conv.ChatbotStep == nil || conv.AssignedOperatorID != nil {
		return nil
	}

	switch *conv.ChatbotStep {
	case model.StepMenu:
		return s.advanceMenu(ctx, conv, input)
	case model.StepAwaitingProcedure:
		return s.advanceProcedure(ctx, conv, input)
	default:
		return nil
	}
}

func (s *ChatbotService) advanceMenu(ctx context.Context, conv *model.Conversation, input string) error {
	choice, ok := parseSelection(input)
	if !ok {
		s.reply(ctx, conv, menuText)
		return nil
	}

	switch choice {
	case 1:
		procedures, err := s.directoryRepo.ListProcedures(ctx, conv.TenantID)
		if err != nil {
			return err
		}
		if len(procedures) == 0 {
			s.reply(ctx, conv, handoffText)
			return s.finish(ctx, conv, false, false)
		}
		step := model.StepAwaitingProcedure
		if err := s.convRepo.SetChatbotStep(ctx, conv.ID, &step); err != nil {
			return err
		}
		conv.ChatbotStep = &step
		s.reply(ctx, conv, procedurePrompt(procedures))
		return nil

	case 2, 3:
		assigned, err := s.routeToPatientProfessional(ctx, conv)
		if err != nil {
			return err
		}
		s.reply(ctx, conv, patientCareText)
		return s.finish(ctx, conv, assigned, false)

	case 4:
		s.reply(ctx, conv, handoffText)
		return s.finish(ctx, conv, false, false)

	default:
		s.reply(ctx, conv, menuText)
		return nil
	}
}

func (s *ChatbotService) advanceProcedure(ctx context.Context, conv *model.Conversation, input string) error {
	procedures, err := s.directoryRepo.ListProcedures(ctx, conv.TenantID)
	if err != nil {
		return err
	}

	choice, ok := parseSelection(input)
	if !ok || choice < 1 || choice > len(procedures) {
		s.reply(ctx, conv, invalidChoiceMsg+procedureList(procedures))
		return nil
	}

	procedure := procedures[choice-1]
	operators, err := s.directoryRepo.OperatorsForProcedure(ctx, conv.TenantID, procedure.ID)
	if err != nil {
		return err
	}

	assigned := false
	hasPool := false
	switch {
	case len(operators) == 1:
		id := operators[0].ID
		if err := s.convRepo.SetAssignee(ctx, conv.ID, &id); err != nil {
			return err
		}
		conv.AssignedOperatorID = &id
		assigned = true
	case len(operators) > 1:
		if err := s.routingRepo.SetEligible(ctx, conv.ID, operatorIDs(operators)); err != nil {
			return err
		}
		hasPool = true
	}

	s.reply(ctx, conv, fmt.Sprintf("Perfeito! Vamos agendar %s. Um atendente vai confirmar os horários disponíveis.", procedure.Name))
	return s.finish(ctx, conv, assigned, hasPool)
}

// routeToPatientProfessional links the conversation to a known patient record
// and, when the patient's latest engagement has a professional with a mapped
// operator, assigns that operator.
func (s *ChatbotService) routeToPatientProfessional(ctx context.Context, conv *model.Conversation) (bool, error) {
	record, err := s.patientRepo.FindByNormalizedAddress(ctx, conv.TenantID, conv.Address)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}

	if err := s.convRepo.SetPatientRecord(ctx, conv.ID, record.ID); err != nil {
		return false, err
	}
	conv.PatientRecordID = &record.ID

	professionalID, err := s.patientRepo.LatestEngagementProfessional(ctx, record.ID)
	if err != nil {
		return false, err
	}
	if professionalID == nil {
		return false, nil
	}

	operatorID, err := s.directoryRepo.OperatorForProfessional(ctx, *professionalID)
	if err != nil {
		return false, err
	}
	if operatorID == nil {
		return false, nil
	}

	if err := s.convRepo.SetAssignee(ctx, conv.ID, operatorID); err != nil {
		return false, err
	}
	conv.AssignedOperatorID = operatorID
	return true, nil
}

// finish marks the flow done. When the terminal branch resolved neither a
// single operator nor an eligible pool, the fallback strategy decides.
func (s *ChatbotService) finish(ctx context.Context, conv *model.Conversation, assigned, hasPool bool) error {
	step := model.StepDone
	if err := s.convRepo.SetChatbotStep(ctx, conv.ID, &step); err != nil {
		return err
	}
	conv.ChatbotStep = &step

	if assigned || hasPool {
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

	decision := DecideFallback(settings, operators, openCounts)
	if decision.Kind == AssignTo {
		if err := s.convRepo.SetAssignee(ctx, conv.ID, &decision.OperatorID); err != nil {
			return err
		}
		conv.AssignedOperatorID = &decision.OperatorID
	}
	return nil
}

func (s *ChatbotService) reply(ctx context.Context, conv *model.Conversation, body string) {
	if _, err := s.sender.SendFreeform(ctx, conv, body); err != nil {
		log.Warn().Err(err).Str("conversationId", conv.ID).Msg("chatbot reply failed")
	}
}

func procedurePrompt(procedures []model.Procedure) string {
	return "Qual procedimento você deseja agendar?\n" + procedureList(procedures) + "Responda com o número da opção."
}

func procedureList(procedures []model.Procedure) string {
	var b strings.Builder
	for i, p := range procedures {
		fmt.Fprintf(&b, "%d. %s\n", i+1, p.Name)
	}
	return b.String()
}

// parseSelection extracts the leading number from a free-text reply, so
// "1", " 1 ", and "1 - agendar" all select option one.
func parseSelection(input string) (int, bool) {
	trimmed := strings.TrimSpace(input)
	end := 0
	for end < len(trimmed) && trimmed[end] >= '0' && trimmed[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(trimmed[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}
