package service

import (
	"github.com/clinicdesk/whatsapp-server-go/internal/model"
)

// AssignmentKind discriminates a routing decision.
type AssignmentKind string

const (
	// AssignTo resolves to a single operator.
	AssignTo AssignmentKind = "assign"
	// Pool leaves the conversation unassigned for a set of candidates; an
	// empty candidate list means the default open pool.
	Pool AssignmentKind = "pool"
	// DeferToChatbot hands control to the automated flow.
	DeferToChatbot AssignmentKind = "chatbot"
)

type Assignment struct {
	Kind       AssignmentKind
	OperatorID string
	Candidates []string
}

// Decide is the routing engine: a pure function of the tenant's strategy,
// its settings, and the currently eligible operators. openCounts must be
// ordered by operator id; ties in round_robin break on that ordering.
func Decide(settings *model.RoutingSettings, operators []model.Operator, openCounts []model.OperatorOpenCount) Assignment {
	strategy := model.StrategyFirstResponder
	if settings != nil {
		strategy = settings.Strategy
	}

	switch strategy {
	case model.StrategyGeneralSecretary:
		if settings.SecretaryID != nil && operatorExists(operators, *settings.SecretaryID) {
			return Assignment{Kind: AssignTo, OperatorID: *settings.SecretaryID}
		}
		return Assignment{Kind: Pool, Candidates: operatorIDs(operators)}

	case model.StrategyRoundRobin:
		if op, ok := leastLoaded(openCounts); ok {
			return Assignment{Kind: AssignTo, OperatorID: op}
		}
		return Assignment{Kind: Pool}

	case model.StrategyChatbot:
		return Assignment{Kind: DeferToChatbot}

	default: // first_responder
		return Assignment{Kind: Pool, Candidates: operatorIDs(operators)}
	}
}

// DecideFallback resolves the chatbot's terminal branch when the flow could
// not determine a single operator. Only first_responder and round_robin
// semantics apply here.
func DecideFallback(settings *model.RoutingSettings, operators []model.Operator, openCounts []model.OperatorOpenCount) Assignment {
	fallback := model.StrategyFirstResponder
	if settings != nil && settings.ChatbotFallback == model.StrategyRoundRobin {
		fallback = model.StrategyRoundRobin
	}

	return Decide(&model.RoutingSettings{Strategy: fallback}, operators, openCounts)
}

func leastLoaded(openCounts []model.OperatorOpenCount) (string, bool) {
	best := ""
	bestCount := -1
	for _, oc := range openCounts {
		if bestCount == -1 || oc.OpenCount < bestCount {
			best = oc.OperatorID
			bestCount = oc.OpenCount
		}
	}
	return best, bestCount != -1
}

func operatorExists(operators []model.Operator, id string) bool {
	for _, op := range operators {
		if op.ID == id {
			return true
		}
	}
	return false
}

func operatorIDs(operators []model.Operator) []string {
	ids := make([]string, 0, len(operators))
	for _, op := range operators {
		ids = append(ids, op.ID)
	}
	return ids
}
