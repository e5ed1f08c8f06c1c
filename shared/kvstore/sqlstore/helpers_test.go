package sqlstore

import "github.com/upekshaip/tg-ytdlp-bot-sub000/shared/config"

func configForTest() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		Database: "media",
		Username: "bot",
		Password: "secret",
		SSLMode:  "disable",
	}
}
