package model

type ConversationStatus string

const (
	ConversationOpen      ConversationStatus = "open"
	ConversationClosed    ConversationStatus = "closed"
	ConversationCompleted ConversationStatus = "completed"
)

type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeVideo    MessageType = "video"
	MessageTypeDocument MessageType = "document"
	MessageTypeOther    MessageType = "other"
)

type CredentialStatus string

const (
	CredentialConnected CredentialStatus = "connected"
	CredentialPending   CredentialStatus = "pending"
	CredentialError     CredentialStatus = "error"
)

type RoutingStrategy string

const (
	StrategyFirstResponder   RoutingStrategy = "first_responder"
	StrategyGeneralSecretary RoutingStrategy = "general_secretary"
	StrategyRoundRobin       RoutingStrategy = "round_robin"
	StrategyChatbot          RoutingStrategy = "chatbot"
)

type ChatbotStep string

const (
	StepMenu              ChatbotStep = "menu"
	StepAwaitingProcedure ChatbotStep = "awaiting_procedure"
	StepDone              ChatbotStep = "done"
)

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleSecretary Role = "secretary"
)
