package api

import "time"

type ServerConfig struct {
	OIDC     OIDCConfig
	DB       DBConfig
	LongPoll LongPollConfig
	Sweep    SweepConfig
	Delivery DeliveryConfig
}

type OIDCConfig struct {
	IssuerURL string
	ClientID  string
}

type DBConfig struct {
	User     string
	Password string
	Host     string
	Port     int
	Database string
	Schema   string
}

type LongPollConfig struct {
	// Timeout 長輪詢請求最長的等待時間，逾時回傳未變化的快照
	Timeout time.Duration
}

type SweepConfig struct {
	// Interval 背景掃描的間隔
	Interval time.Duration
	// EndingSoonLead 結束前多久發送即將結束通知
	EndingSoonLead time.Duration
}

type DeliveryConfig struct {
	Endpoint     string
	TokenURL     string
	ClientID     string
	ClientSecret string
}
