package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/clinicdesk/whatsapp-server-go/internal/model"
)

func stepPtr(s model.ChatbotStep) *model.ChatbotStep { return &s }

func chatbotFixture() (*ChatbotService, *mockConversationRepo, *mockRoutingRepo, *mockDirectoryRepo, *mockPatientRepo, *mockSender) {
	convRepo := new(mockConversationRepo)
	routingRepo := new(mockRoutingRepo)
	directoryRepo := new(mockDirectoryRepo)
	patientRepo := new(mockPatientRepo)
	sender := new(mockSender)
	svc := NewChatbotService(convRepo, routingRepo, directoryRepo, patientRepo, sender)
	return svc, convRepo, routingRepo, directoryRepo, patientRepo, sender
}

func menuConv() *model.Conversation {
	return &model.Conversation{
		ID:          "conv-1",
		TenantID:    "tenant-1",
		Address:     "5511999990000",
		ChatbotStep: stepPtr(model.StepMenu),
	}
}

// expectFallback wires the repos for a finish that resolved nothing: the
// default fallback (first_responder) leaves the conversation in the pool.
func expectFallback(convRepo *mockConversationRepo, routingRepo *mockRoutingRepo, directoryRepo *mockDirectoryRepo) {
	convRepo.On("SetChatbotStep", mock.Anything, "conv-1", mock.Anything).Return(nil)
	routingRepo.On("GetSettings", mock.Anything, "tenant-1").Return(&model.RoutingSettings{
		TenantID: "tenant-1",
		Strategy: model.StrategyChatbot,
	}, nil)
	directoryRepo.On("ListOperators", mock.Anything, "tenant-1").Return(operators("op-1", "op-2"), nil)
	routingRepo.On("OpenCounts", mock.Anything, "tenant-1").Return([]model.OperatorOpenCount{}, nil)
}

func TestChatbotGreet(t *testing.T) {
	svc, convRepo, _, _, _, sender := chatbotFixture()

	conv := &model.Conversation{ID: "conv-1", TenantID: "tenant-1"}
	convRepo.On("SetChatbotStep", mock.Anything, "conv-1", mock.Anything).Return(nil)

	err := svc.Greet(context.Background(), conv)

	assert.NoError(t, err)
	assert.Equal(t, model.StepMenu, *conv.ChatbotStep)
	assert.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "1. Agendar consulta")
}

func TestChatbotMenuStep(t *testing.T) {
	t.Run("option 1 lists procedures and advances", func(t *testing.T) {
		svc, convRepo, _, directoryRepo, _, sender := chatbotFixture()
		conv := menuConv()

		directoryRepo.On("ListProcedures", mock.Anything, "tenant-1").Return([]model.Procedure{
			{ID: "proc-1", Name: "Limpeza"},
			{ID: "proc-2", Name: "Avaliação"},
		}, nil)
		convRepo.On("SetChatbotStep", mock.Anything, "conv-1", mock.Anything).Return(nil)

		err := svc.Advance(context.Background(), conv, "1")

		assert.NoError(t, err)
		assert.Equal(t, model.StepAwaitingProcedure, *conv.ChatbotStep)
		assert.Len(t, sender.sent, 1)
		assert.Contains(t, sender.sent[0], "1. Limpeza")
		assert.Contains(t, sender.sent[0], "2. Avaliação")
	})

	t.Run("option 1 with no procedures hands off and finishes", func(t *testing.T) {
		svc, convRepo, routingRepo, directoryRepo, _, sender := chatbotFixture()
		conv := menuConv()

		directoryRepo.On("ListProcedures", mock.Anything, "tenant-1").Return([]model.Procedure{}, nil)
		expectFallback(convRepo, routingRepo, directoryRepo)

		err := svc.Advance(context.Background(), conv, "1")

		assert.NoError(t, err)
		assert.Equal(t, model.StepDone, *conv.ChatbotStep)
		assert.Nil(t, conv.AssignedOperatorID)
		assert.Len(t, sender.sent, 1)
		assert.Equal(t, handoffText, sender.sent[0])
	})

	t.Run("option 2 routes to the patient's professional operator", func(t *testing.T) {
		svc, convRepo, _, directoryRepo, patientRepo, sender := chatbotFixture()
		conv := menuConv()

		patientRepo.On("FindByNormalizedAddress", mock.Anything, "tenant-1", conv.Address).
			Return(&model.PatientRecord{ID: "rec-1", TenantID: "tenant-1"}, nil)
		convRepo.On("SetPatientRecord", mock.Anything, "conv-1", "rec-1").Return(nil)
		patientRepo.On("LatestEngagementProfessional", mock.Anything, "rec-1").Return(strPtr("prof-1"), nil)
		directoryRepo.On("OperatorForProfessional", mock.Anything, "prof-1").Return(strPtr("op-9"), nil)
		convRepo.On("SetAssignee", mock.Anything, "conv-1", mock.Anything).Return(nil)
		convRepo.On("SetChatbotStep", mock.Anything, "conv-1", mock.Anything).Return(nil)

		err := svc.Advance(context.Background(), conv, "2")

		assert.NoError(t, err)
		assert.Equal(t, model.StepDone, *conv.ChatbotStep)
		assert.Equal(t, "op-9", *conv.AssignedOperatorID)
		assert.Len(t, sender.sent, 1)
	})

	t.Run("option 3 with unknown patient finishes unassigned", func(t *testing.T) {
		svc, convRepo, routingRepo, directoryRepo, patientRepo, _ := chatbotFixture()
		conv := menuConv()

		patientRepo.On("FindByNormalizedAddress", mock.Anything, "tenant-1", conv.Address).Return(nil, nil)
		expectFallback(convRepo, routingRepo, directoryRepo)

		err := svc.Advance(context.Background(), conv, "3")

		assert.NoError(t, err)
		assert.Equal(t, model.StepDone, *conv.ChatbotStep)
		assert.Nil(t, conv.AssignedOperatorID)
	})

	t.Run("option 4 hands off", func(t *testing.T) {
		svc, convRepo, routingRepo, directoryRepo, _, sender := chatbotFixture()
		conv := menuConv()

		expectFallback(convRepo, routingRepo, directoryRepo)

		err := svc.Advance(context.Background(), conv, "4")

		assert.NoError(t, err)
		assert.Equal(t, model.StepDone, *conv.ChatbotStep)
		assert.Equal(t, handoffText, sender.sent[0])
	})

	t.Run("option 4 fallback round robin assigns the least loaded operator", func(t *testing.T) {
		svc, convRepo, routingRepo, directoryRepo, _, _ := chatbotFixture()
		conv := menuConv()

		convRepo.On("SetChatbotStep", mock.Anything, "conv-1", mock.Anything).Return(nil)
		routingRepo.On("GetSettings", mock.Anything, "tenant-1").Return(&model.RoutingSettings{
			TenantID:        "tenant-1",
			Strategy:        model.StrategyChatbot,
			ChatbotFallback: model.StrategyRoundRobin,
		}, nil)
		directoryRepo.On("ListOperators", mock.Anything, "tenant-1").Return(operators("op-1", "op-2"), nil)
		routingRepo.On("OpenCounts", mock.Anything, "tenant-1").Return([]model.OperatorOpenCount{
			{OperatorID: "op-1", OpenCount: 4},
			{OperatorID: "op-2", OpenCount: 1},
		}, nil)
		convRepo.On("SetAssignee", mock.Anything, "conv-1", mock.Anything).Return(nil)

		err := svc.Advance(context.Background(), conv, "4")

		assert.NoError(t, err)
		assert.Equal(t, "op-2", *conv.AssignedOperatorID)
	})

	t.Run("unparseable input re-sends the menu and stays", func(t *testing.T) {
		svc, _, _, _, _, sender := chatbotFixture()
		conv := menuConv()

		err := svc.Advance(context.Background(), conv, "quero marcar")

		assert.NoError(t, err)
		assert.Equal(t, model.StepMenu, *conv.ChatbotStep)
		assert.Equal(t, menuText, sender.sent[0])
	})

	t.Run("out-of-range option re-sends the menu and stays", func(t *testing.T) {
		svc, _, _, _, _, sender := chatbotFixture()
		conv := menuConv()

		err := svc.Advance(context.Background(), conv, "7")

		assert.NoError(t, err)
		assert.Equal(t, model.StepMenu, *conv.ChatbotStep)
		assert.Equal(t, menuText, sender.sent[0])
	})
}

func TestChatbotProcedureStep(t *testing.T) {
	procConv := func() *model.Conversation {
		c := menuConv()
		c.ChatbotStep = stepPtr(model.StepAwaitingProcedure)
		return c
	}

	twoProcedures := []model.Procedure{
		{ID: "proc-1", Name: "Limpeza"},
		{ID: "proc-2", Name: "Clareamento"},
	}

	t.Run("single mapped operator is assigned directly", func(t *testing.T) {
		svc, convRepo, _, directoryRepo, _, sender := chatbotFixture()
		conv := procConv()

		directoryRepo.On("ListProcedures", mock.Anything, "tenant-1").Return(twoProcedures, nil)
		directoryRepo.On("OperatorsForProcedure", mock.Anything, "tenant-1", "proc-2").Return(operators("op-5"), nil)
		convRepo.On("SetAssignee", mock.Anything, "conv-1", mock.Anything).Return(nil)
		convRepo.On("SetChatbotStep", mock.Anything, "conv-1", mock.Anything).Return(nil)

		err := svc.Advance(context.Background(), conv, "2")

		assert.NoError(t, err)
		assert.Equal(t, model.StepDone, *conv.ChatbotStep)
		assert.Equal(t, "op-5", *conv.AssignedOperatorID)
		assert.Contains(t, sender.sent[0], "Clareamento")
	})

	t.Run("multiple mapped operators become the eligible pool", func(t *testing.T) {
		svc, convRepo, routingRepo, directoryRepo, _, _ := chatbotFixture()
		conv := procConv()

		directoryRepo.On("ListProcedures", mock.Anything, "tenant-1").Return(twoProcedures, nil)
		directoryRepo.On("OperatorsForProcedure", mock.Anything, "tenant-1", "proc-1").
			Return(operators("op-1", "op-2", "op-3"), nil)
		routingRepo.On("SetEligible", mock.Anything, "conv-1", []string{"op-1", "op-2", "op-3"}).Return(nil)
		convRepo.On("SetChatbotStep", mock.Anything, "conv-1", mock.Anything).Return(nil)

		err := svc.Advance(context.Background(), conv, "1")

		assert.NoError(t, err)
		assert.Equal(t, model.StepDone, *conv.ChatbotStep)
		assert.Nil(t, conv.AssignedOperatorID)
		routingRepo.AssertCalled(t, "SetEligible", mock.Anything, "conv-1", []string{"op-1", "op-2", "op-3"})
	})

	t.Run("no mapped operators falls back", func(t *testing.T) {
		svc, convRepo, routingRepo, directoryRepo, _, _ := chatbotFixture()
		conv := procConv()

		directoryRepo.On("ListProcedures", mock.Anything, "tenant-1").Return(twoProcedures, nil)
		directoryRepo.On("OperatorsForProcedure", mock.Anything, "tenant-1", "proc-1").Return([]model.Operator{}, nil)
		expectFallback(convRepo, routingRepo, directoryRepo)

		err := svc.Advance(context.Background(), conv, "1")

		assert.NoError(t, err)
		assert.Equal(t, model.StepDone, *conv.ChatbotStep)
		assert.Nil(t, conv.AssignedOperatorID)
	})

	t.Run("out-of-range selection re-prompts and stays", func(t *testing.T) {
		svc, _, _, directoryRepo, _, sender := chatbotFixture()
		conv := procConv()

		directoryRepo.On("ListProcedures", mock.Anything, "tenant-1").Return(twoProcedures, nil)

		err := svc.Advance(context.Background(), conv, "9")

		assert.NoError(t, err)
		assert.Equal(t, model.StepAwaitingProcedure, *conv.ChatbotStep)
		assert.Contains(t, sender.sent[0], "Opção inválida")
		assert.Contains(t, sender.sent[0], "1. Limpeza")
	})
}

func TestChatbotAdvanceNoops(t *testing.T) {
	t.Run("ignores conversations past the flow", func(t *testing.T) {
		svc, _, _, _, _, sender := chatbotFixture()
		conv := menuConv()
		conv.ChatbotStep = stepPtr(model.StepDone)

		err := svc.Advance(context.Background(), conv, "1")

		assert.NoError(t, err)
		assert.Empty(t, sender.sent)
	})

	t.Run("ignores conversations with an operator", func(t *testing.T) {
		svc, _, _, _, _, sender := chatbotFixture()
		conv := menuConv()
		conv.AssignedOperatorID = strPtr("op-1")

		err := svc.Advance(context.Background(), conv, "1")

		assert.NoError(t, err)
		assert.Empty(t, sender.sent)
	})

	t.Run("ignores conversations that never entered the flow", func(t *testing.T) {
		svc, _, _, _, _, sender := chatbotFixture()
		conv := menuConv()
		conv.ChatbotStep = nil

		err := svc.Advance(context.Background(), conv, "1")

		assert.NoError(t, err)
		assert.Empty(t, sender.sent)
	})
}

func TestParseSelection(t *testing.T) {
	cases := []struct {
		input string
		want  int
		ok    bool
	}{
		{"1", 1, true},
		{" 2 ", 2, true},
		{"3 - cancelar", 3, true},
		{"10", 10, true},
		{"quero marcar", 0, false},
		{"", 0, false},
		{"-1", 0, false},
		{"um", 0, false},
	}

	for _, tc := range cases {
		got, ok := parseSelection(tc.input)
		assert.Equal(t, tc.ok, ok, "input %q", tc.input)
		if tc.ok {
			assert.Equal(t, tc.want, got, "input %q", tc.input)
		}
	}
}
