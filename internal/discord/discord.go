package discord

import "context"

type ButtonStyle int

const (
	ButtonStylePrimary ButtonStyle = iota
	ButtonStyleSecondary
	ButtonStyleSuccess
	ButtonStyleDanger
)

type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
	Disabled bool
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type MessageContent struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Buttons     []Button
}

type SlashCommandDefinition struct {
	Name        string
	Description string
}

type SlashCommandEvent struct {
	GuildID          string
	ChannelID        string
	CommandName      string
	UserID           string
	UserIsAdmin      bool
	RespondEphemeral func(content string) error
}

type ButtonEvent struct {
	GuildID          string
	ChannelID        string
	MessageID        string
	CustomID         string
	UserID           string
	UserIsAdmin      bool
	Acknowledge      func() error
	RespondEphemeral func(content string) error
}

type MessageDeleteEvent struct {
	GuildID   string
	ChannelID string
	MessageID string
}

type Client interface {
	Connect(ctx context.Context) error
	Close() error
	Run() error
	GetBotUserID() (string, error)
	UpsertGuildSlashCommands(guildID string, defs []SlashCommandDefinition) error
	RegisterSlashCommandHandler(handler func(SlashCommandEvent))
	RegisterButtonHandler(handler func(ButtonEvent))
	RegisterMessageDeleteHandler(handler func(MessageDeleteEvent))
	SendAndPinEmbed(channelID string, msg MessageContent) (string, error)
	EditMessage(channelID, messageID string, msg MessageContent) error
	SendChannelMessage(channelID, content string) error
	DeleteMessage(channelID, messageID string) error
	CreateThread(channelID, messageID, name string) (string, error)
	AddThreadMember(threadID, userID string) error
	RemoveThreadMember(threadID, userID string) error
	LockAndArchiveThread(threadID string) error
	CreateVoiceChannel(guildID, name string, userLimit int) (string, error)
	GrantVoiceAccess(channelID, userID string) error
	RevokeVoiceAccess(channelID, userID string) error
	DeleteChannel(channelID string) error
}
