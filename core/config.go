package core

// Config holds the application settings. The cameras themselves live in the
// INI file referenced by CameraFile, see Cameras.
type Config struct {
	CameraFile string         `mapstructure:"config"`
	StrictSave bool           `mapstructure:"strict_save"`
	Log        LogConfig      `mapstructure:"log"`
	Server     ServerConfig   `mapstructure:"server"`
	Telegram   TelegramConfig `mapstructure:"telegram"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type ServerConfig struct {
	Listen     string `mapstructure:"listen"`
	RateFilter int    `mapstructure:"max_requests_per_hr"`
}

type TelegramConfig struct {
	ApiKey string `mapstructure:"api_key"`
	ChatId int64  `mapstructure:"chat_id"`
}

// Enabled reports whether snapshots should be forwarded to Telegram.
func (t TelegramConfig) Enabled() bool {
	return t.ApiKey != "" && t.ChatId != 0
}
