package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/slemay/globedash/internal/config"
	"github.com/slemay/globedash/internal/events"
)

// Manager handles notification dispatching across providers. Transition
// detection lives upstream; the manager only formats and sends.
type Manager struct {
	discordConfig config.DiscordSettings
	discord       *DiscordProvider

	mu sync.RWMutex
}

// NewManager creates a new notification manager.
func NewManager(discordCfg config.DiscordSettings) *Manager {
	m := &Manager{discordConfig: discordCfg}

	if discordCfg.Enabled {
		m.discord = NewDiscordProvider(discordCfg.BotToken, discordCfg.ChannelID)
	}

	return m
}

// Start initializes and connects all enabled providers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.discord != nil && m.discordConfig.Enabled {
		if err := m.discord.Connect(ctx); err != nil {
			slog.Error("Failed to connect Discord provider", "error", err)
			return err
		}
	}

	return nil
}

// Stop disconnects all providers.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.discord != nil {
		if err := m.discord.Disconnect(); err != nil {
			slog.Error("Failed to disconnect Discord provider", "error", err)
		}
	}
}

// IsEnabled returns true if Discord notifications are enabled.
func (m *Manager) IsEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.discordConfig.Enabled
}

// IsConfigValid returns true and empty string if config is valid,
// otherwise returns false and an error message.
func (m *Manager) IsConfigValid() (bool, string) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.discordConfig.Enabled {
		return true, ""
	}

	if m.discordConfig.BotToken == "" {
		return false, "Discord bot token is not configured"
	}

	if m.discordConfig.ChannelID == "" {
		return false, "Discord channel ID is not configured"
	}

	return true, ""
}

// NotifyRegionDown sends an alert that a region's polls keep failing.
func (m *Manager) NotifyRegionDown(region events.Region, reason error) {
	m.mu.RLock()
	discord := m.discord
	enabled := m.discordConfig.Enabled
	m.mu.RUnlock()

	if !enabled || discord == nil {
		return
	}

	detail := "no further detail"
	if reason != nil {
		detail = reason.Error()
	}

	notification := Notification{
		Type:    NotificationTypeRegionDown,
		Title:   fmt.Sprintf("🔴 Region down: %s", region),
		Message: fmt.Sprintf("Consecutive polls of **%s** are failing.\nLast error: %s", region, detail),
		Region:  string(region),
	}

	go func() {
		if err := discord.Send(context.Background(), notification); err != nil {
			slog.Error("Failed to send region down notification", "error", err)
		}
	}()
}

// NotifyRegionRecovered sends an all-clear for a previously down region.
func (m *Manager) NotifyRegionRecovered(region events.Region) {
	m.mu.RLock()
	discord := m.discord
	enabled := m.discordConfig.Enabled
	m.mu.RUnlock()

	if !enabled || discord == nil {
		return
	}

	notification := Notification{
		Type:    NotificationTypeRegionRecovered,
		Title:   fmt.Sprintf("🟢 Region recovered: %s", region),
		Message: fmt.Sprintf("**%s** is answering polls again.", region),
		Region:  string(region),
	}

	go func() {
		if err := discord.Send(context.Background(), notification); err != nil {
			slog.Error("Failed to send region recovered notification", "error", err)
		}
	}()
}
