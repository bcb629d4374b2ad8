package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/hfcRed/Agent-8s-sub000/internal/discord"
)

const threadAutoArchiveMinutes = 1440

type Client struct {
	session   *discordgo.Session
	token     string
	botUserID string
}

func NewClient(token string) discordpkg.Client {
	return &Client{
		token: token,
	}
}

func (c *Client) Connect(ctx context.Context) error {
	_ = ctx
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	c.session = s
	s.Identify.Intents = discordgo.MakeIntent(discordgo.IntentsGuilds | discordgo.IntentsGuildMessages)
	if err := s.Open(); err != nil {
		return err
	}
	userID, err := c.GetBotUserID()
	if err != nil {
		return err
	}
	c.botUserID = userID
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) Run() error {
	select {}
}

func (c *Client) GetBotUserID() (string, error) {
	if c.botUserID != "" {
		return c.botUserID, nil
	}
	if c.session == nil {
		return "", fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		c.botUserID = c.session.State.User.ID
		return c.botUserID, nil
	}
	u, err := c.session.User("@me")
	if err != nil {
		return "", err
	}
	c.botUserID = u.ID
	return c.botUserID, nil
}

func (c *Client) UpsertGuildSlashCommands(guildID string, defs []discordpkg.SlashCommandDefinition) error {
	appID := c.applicationID()
	if appID == "" {
		return fmt.Errorf("discord application id is not available")
	}
	existing, err := c.session.ApplicationCommands(appID, guildID)
	if err != nil {
		return err
	}
	existingByName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, cmd := range existing {
		if cmd == nil || cmd.Name == "" {
			continue
		}
		existingByName[cmd.Name] = cmd
	}
	for _, def := range defs {
		if err := c.upsertGuildSlashCommand(appID, guildID, def, existingByName); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) upsertGuildSlashCommand(appID, guildID string, def discordpkg.SlashCommandDefinition, existingByName map[string]*discordgo.ApplicationCommand) error {
	if def.Name == "" {
		return nil
	}
	payload := &discordgo.ApplicationCommand{
		Name:        def.Name,
		Description: def.Description,
	}
	cmd, ok := existingByName[def.Name]
	if !ok {
		_, err := c.session.ApplicationCommandCreate(appID, guildID, payload)
		return err
	}
	if cmd.Description == def.Description {
		return nil
	}
	_, err := c.session.ApplicationCommandEdit(appID, guildID, cmd.ID, payload)
	return err
}

func (c *Client) RegisterSlashCommandHandler(handler func(discordpkg.SlashCommandEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := ic.ApplicationCommandData()
		if data.Name == "" {
			return
		}
		userID := interactionUserID(ic)
		if userID == "" {
			return
		}
		slog.Info("slash command interaction received", "guild_id", ic.GuildID, "channel_id", ic.ChannelID, "command", data.Name, "user_id", userID)
		handler(discordpkg.SlashCommandEvent{
			GuildID:          ic.GuildID,
			ChannelID:        ic.ChannelID,
			CommandName:      data.Name,
			UserID:           userID,
			UserIsAdmin:      memberIsAdmin(ic.Member),
			RespondEphemeral: ephemeralResponder(s, ic),
		})
	})
}

func (c *Client) RegisterButtonHandler(handler func(discordpkg.ButtonEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionMessageComponent {
			return
		}
		data := ic.MessageComponentData()
		if data.CustomID == "" || ic.Message == nil {
			return
		}
		userID := interactionUserID(ic)
		if userID == "" {
			return
		}
		handler(discordpkg.ButtonEvent{
			GuildID:     ic.GuildID,
			ChannelID:   ic.ChannelID,
			MessageID:   ic.Message.ID,
			CustomID:    data.CustomID,
			UserID:      userID,
			UserIsAdmin: memberIsAdmin(ic.Member),
			Acknowledge: func() error {
				return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
					Type: discordgo.InteractionResponseDeferredMessageUpdate,
				})
			},
			RespondEphemeral: ephemeralResponder(s, ic),
		})
	})
}

func (c *Client) RegisterMessageDeleteHandler(handler func(discordpkg.MessageDeleteEvent)) {
	c.session.AddHandler(func(s *discordgo.Session, md *discordgo.MessageDelete) {
		if md == nil || md.ID == "" {
			return
		}
		handler(discordpkg.MessageDeleteEvent{
			GuildID:   md.GuildID,
			ChannelID: md.ChannelID,
			MessageID: md.ID,
		})
	})
}

func (c *Client) SendAndPinEmbed(channelID string, msg discordpkg.MessageContent) (string, error) {
	sent, err := c.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{buildEmbed(msg)},
		Components: buildComponents(msg.Buttons),
	})
	if err != nil {
		return "", err
	}
	if err := c.session.ChannelMessagePin(channelID, sent.ID); err != nil {
		slog.Warn("failed to pin lobby anchor", "channel_id", channelID, "message_id", sent.ID, "error", err)
	}
	return sent.ID, nil
}

func (c *Client) EditMessage(channelID, messageID string, msg discordpkg.MessageContent) error {
	embeds := []*discordgo.MessageEmbed{buildEmbed(msg)}
	components := buildComponents(msg.Buttons)
	_, err := c.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    channelID,
		ID:         messageID,
		Embeds:     &embeds,
		Components: &components,
	})
	return err
}

func (c *Client) SendChannelMessage(channelID, content string) error {
	_, err := c.session.ChannelMessageSend(channelID, content)
	return err
}

func (c *Client) DeleteMessage(channelID, messageID string) error {
	return c.session.ChannelMessageDelete(channelID, messageID)
}

func (c *Client) CreateThread(channelID, messageID, name string) (string, error) {
	thread, err := c.session.MessageThreadStartComplex(channelID, messageID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: threadAutoArchiveMinutes,
	})
	if err != nil {
		return "", err
	}
	return thread.ID, nil
}

func (c *Client) AddThreadMember(threadID, userID string) error {
	return c.session.ThreadMemberAdd(threadID, userID)
}

func (c *Client) RemoveThreadMember(threadID, userID string) error {
	return c.session.ThreadMemberRemove(threadID, userID)
}

func (c *Client) LockAndArchiveThread(threadID string) error {
	archived := true
	locked := true
	_, err := c.session.ChannelEdit(threadID, &discordgo.ChannelEdit{
		Archived: &archived,
		Locked:   &locked,
	})
	return err
}

func (c *Client) CreateVoiceChannel(guildID, name string, userLimit int) (string, error) {
	channel, err := c.session.GuildChannelCreateComplex(guildID, discordgo.GuildChannelCreateData{
		Name:      name,
		Type:      discordgo.ChannelTypeGuildVoice,
		UserLimit: userLimit,
	})
	if err != nil {
		return "", err
	}
	return channel.ID, nil
}

func (c *Client) GrantVoiceAccess(channelID, userID string) error {
	allow := int64(discordgo.PermissionViewChannel | discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak)
	return c.session.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember, allow, 0)
}

func (c *Client) RevokeVoiceAccess(channelID, userID string) error {
	return c.session.ChannelPermissionDelete(channelID, userID)
}

func (c *Client) DeleteChannel(channelID string) error {
	_, err := c.session.ChannelDelete(channelID)
	return err
}

func (c *Client) applicationID() string {
	if c.session == nil || c.session.State == nil {
		return ""
	}
	if c.session.State.Application != nil && c.session.State.Application.ID != "" {
		return c.session.State.Application.ID
	}
	if c.session.State.User != nil {
		return c.session.State.User.ID
	}
	return ""
}

func interactionUserID(ic *discordgo.InteractionCreate) string {
	if ic.Member != nil && ic.Member.User != nil {
		return ic.Member.User.ID
	}
	if ic.User != nil {
		return ic.User.ID
	}
	return ""
}

func memberIsAdmin(member *discordgo.Member) bool {
	if member == nil {
		return false
	}
	return member.Permissions&(discordgo.PermissionAdministrator|discordgo.PermissionManageServer) != 0
}

func ephemeralResponder(s *discordgo.Session, ic *discordgo.InteractionCreate) func(content string) error {
	return func(content string) error {
		return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: content,
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
	}
}

func buildEmbed(msg discordpkg.MessageContent) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Description,
		Color:       msg.Color,
	}
	for _, f := range msg.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	return embed
}

// buildComponents chunks buttons into action rows of at most five, the
// Discord per-row limit.
func buildComponents(buttons []discordpkg.Button) []discordgo.MessageComponent {
	if len(buttons) == 0 {
		return []discordgo.MessageComponent{}
	}
	var rows []discordgo.MessageComponent
	for start := 0; start < len(buttons); start += 5 {
		end := start + 5
		if end > len(buttons) {
			end = len(buttons)
		}
		row := discordgo.ActionsRow{}
		for _, b := range buttons[start:end] {
			row.Components = append(row.Components, discordgo.Button{
				CustomID: b.CustomID,
				Label:    b.Label,
				Style:    buttonStyle(b.Style),
				Disabled: b.Disabled,
			})
		}
		rows = append(rows, row)
	}
	return rows
}

func buttonStyle(style discordpkg.ButtonStyle) discordgo.ButtonStyle {
	switch style {
	case discordpkg.ButtonStyleSecondary:
		return discordgo.SecondaryButton
	case discordpkg.ButtonStyleSuccess:
		return discordgo.SuccessButton
	case discordpkg.ButtonStyleDanger:
		return discordgo.DangerButton
	default:
		return discordgo.PrimaryButton
	}
}
