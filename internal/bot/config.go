package bot

import (
	"fmt"
	"time"

	coreconfig "github.com/m3rciful/mailbot/core/config"
	coredatabase "github.com/m3rciful/mailbot/core/database"
	"github.com/m3rciful/mailbot/internal/conversation"
	"github.com/m3rciful/mailbot/internal/health"
	"github.com/m3rciful/mailbot/internal/mailer"
)

// DefaultMaxAttachmentBytes matches the Bot API download limit.
const DefaultMaxAttachmentBytes int64 = 20 << 20

// ConversationConfig tunes the collection dialog.
type ConversationConfig struct {
	IdleTimeout        time.Duration `yaml:"idle_timeout" envconfig:"CONVERSATION_TIMEOUT"`
	MaxAttachmentBytes int64         `yaml:"max_attachment_bytes" envconfig:"MAX_ATTACHMENT_BYTES"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Conversation ConversationConfig  `yaml:"conversation"`
	Mail         mailer.Config       `yaml:"mail"`
	Health       health.Config       `yaml:"health"`
	Database     coredatabase.Config `yaml:"database"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Config
}

// LoadConfig reads path, overlays the environment and validates every section.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates cfg and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if c.Conversation.IdleTimeout == 0 {
		c.Conversation.IdleTimeout = conversation.DefaultIdleTimeout
	}
	if c.Conversation.IdleTimeout < 0 {
		return fmt.Errorf("conversation.idle_timeout must be > 0")
	}
	if c.Conversation.MaxAttachmentBytes == 0 {
		c.Conversation.MaxAttachmentBytes = DefaultMaxAttachmentBytes
	}
	if c.Conversation.MaxAttachmentBytes < 0 {
		return fmt.Errorf("conversation.max_attachment_bytes must be > 0")
	}
	if err := c.Mail.Normalize(); err != nil {
		return err
	}
	if _, err := conversation.NewBodyRenderer(c.Mail.BodyTemplate, c.Mail.Signature); err != nil {
		return fmt.Errorf("mail.body_template: %w", err)
	}
	if err := c.Health.Normalize(); err != nil {
		return err
	}
	return c.Database.Normalize()
}
