package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Discord notification embed colors
const (
	ColorDown      = 0xFF4545 // Red
	ColorRecovered = 0x00FF00 // Green
)

// DiscordProvider implements the Provider interface for Discord notifications.
type DiscordProvider struct {
	botToken  string
	channelID string
	session   *discordgo.Session

	mu sync.RWMutex
}

// NewDiscordProvider creates a new Discord notification provider.
func NewDiscordProvider(botToken, channelID string) *DiscordProvider {
	return &DiscordProvider{
		botToken:  botToken,
		channelID: channelID,
	}
}

// Name returns the provider's identifier.
func (d *DiscordProvider) Name() string {
	return "discord"
}

// IsConfigured returns true if the provider has valid configuration.
func (d *DiscordProvider) IsConfigured() bool {
	return d.botToken != "" && d.channelID != ""
}

// Connect establishes connection to Discord.
func (d *DiscordProvider) Connect(ctx context.Context) error {
	if !d.IsConfigured() {
		return fmt.Errorf("discord not configured: missing bot token or channel ID")
	}

	session, err := discordgo.New("Bot " + d.botToken)
	if err != nil {
		return fmt.Errorf("failed to create Discord session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	if err := session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	d.mu.Lock()
	d.session = session
	d.mu.Unlock()

	slog.Info("Discord notification provider connected", "channelID", d.channelID)
	return nil
}

// Disconnect closes the Discord connection.
func (d *DiscordProvider) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		if err := d.session.Close(); err != nil {
			return err
		}
		d.session = nil
	}
	return nil
}

// Send sends a notification to Discord.
func (d *DiscordProvider) Send(ctx context.Context, notification Notification) error {
	d.mu.RLock()
	session := d.session
	d.mu.RUnlock()

	if session == nil {
		return fmt.Errorf("discord not connected")
	}

	channelID := notification.ChannelID
	if channelID == "" {
		channelID = d.channelID
	}
	if channelID == "" {
		return fmt.Errorf("no channel ID specified for notification")
	}

	color := notification.Color
	if color == 0 {
		switch notification.Type {
		case NotificationTypeRegionRecovered:
			color = ColorRecovered
		default:
			color = ColorDown
		}
	}

	embed := &discordgo.MessageEmbed{
		Title:       notification.Title,
		Description: notification.Message,
		Color:       color,
		Timestamp:   time.Now().Format(time.RFC3339),
		Footer: &discordgo.MessageEmbedFooter{
			Text: "Globe Dashboard",
		},
	}

	if notification.Region != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name: notification.Region,
		}
	}

	_, err := session.ChannelMessageSendEmbed(channelID, embed)
	if err != nil {
		slog.Error("Failed to send Discord notification",
			"channel", channelID,
			"type", notification.Type,
			"error", err,
		)
		return fmt.Errorf("failed to send Discord message: %w", err)
	}

	slog.Debug("Discord notification sent",
		"channel", channelID,
		"type", notification.Type,
		"region", notification.Region,
	)
	return nil
}

// UpdateConfig updates the Discord provider configuration.
func (d *DiscordProvider) UpdateConfig(botToken, channelID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.botToken = botToken
	d.channelID = channelID
}
