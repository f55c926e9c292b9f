package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel:  "info",
			Workers:   4,
			QueueSize: 64,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		Session: SessionConfig{
			DBPath: "~/.wxgate/sessions.db",
		},
		Channels: ChannelsConfig{
			WeChat: WeChatConfig{},
			Telegram: TelegramConfig{
				Enabled:   false,
				ParseMode: "Markdown",
			},
		},
		Routes: map[string]string{
			"wechat":   "default",
			"telegram": "default",
		},
	}
}
