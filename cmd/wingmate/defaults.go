package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	viper.SetDefault("llm.endpoint", "https://api.openai.com")
	viper.SetDefault("llm.model", "gpt-4.1-mini")
	viper.SetDefault("llm.api_key", "")

	viper.SetDefault("file_state_dir", "~/.wingmate")

	viper.SetDefault("telegram.bot_token", "")
	viper.SetDefault("telegram.poll_timeout", 50)

	viper.SetDefault("server.bind", "127.0.0.1")
	viper.SetDefault("server.port", 8788)

	viper.SetDefault("sweep.interval", time.Minute)
}
