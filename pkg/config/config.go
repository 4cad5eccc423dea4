package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	DB      DBConfig
	Cleanup CleanupConfig
}

type ServerConfig struct {
	Address string
}

type DBConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     int
}

// CleanupConfig 過期會話清理的設定
// 建立後超過保留時數仍無人加入的會話會被清掉，代碼記入已用帳目
type CleanupConfig struct {
	RetentionHours int
	IntervalHours  int
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./pkg/config")

	viper.SetDefault("cleanup.retentionhours", 24)
	viper.SetDefault("cleanup.intervalhours", 1)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
