package main

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"cardbid/api"
)

func ParseArgs() Args {
	// server config
	pflag.String("server-url", "0.0.0.0:8080", "")

	// oidc config
	pflag.String("oidc-issuer-url", "", "")
	pflag.String("oidc-client-id", "", "")

	// db config
	pflag.String("db-user", "", "")
	pflag.String("db-password", "", "")
	pflag.String("db-host", "", "")
	pflag.Int("db-port", 5432, "")
	pflag.String("db-database", "", "")
	pflag.String("db-schema", "", "")

	// long poll config
	pflag.Duration("long-poll-timeout", 30*time.Second, "")

	// sweep config
	pflag.Duration("sweep-interval", 30*time.Second, "")
	pflag.Duration("ending-soon-lead", 5*time.Minute, "")

	// delivery config
	pflag.String("delivery-endpoint", "", "")
	pflag.String("delivery-token-url", "", "")
	pflag.String("delivery-client-id", "", "")
	pflag.String("delivery-client-secret", "", "")

	// bind pflag to viper
	pflag.Parse()
	viper.BindPFlags(pflag.CommandLine)
	viper.AutomaticEnv()
	viper.SetEnvPrefix("CARDBID")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	// initial arguments
	return Args{
		ServerURL: viper.GetString("server-url"),
		ServerConfig: api.ServerConfig{
			OIDC: api.OIDCConfig{
				IssuerURL: viper.GetString("oidc-issuer-url"),
				ClientID:  viper.GetString("oidc-client-id"),
			},
			DB: api.DBConfig{
				User:     viper.GetString("db-user"),
				Password: viper.GetString("db-password"),
				Host:     viper.GetString("db-host"),
				Port:     viper.GetInt("db-port"),
				Database: viper.GetString("db-database"),
				Schema:   viper.GetString("db-schema"),
			},
			LongPoll: api.LongPollConfig{
				Timeout: viper.GetDuration("long-poll-timeout"),
			},
			Sweep: api.SweepConfig{
				Interval:       viper.GetDuration("sweep-interval"),
				EndingSoonLead: viper.GetDuration("ending-soon-lead"),
			},
			Delivery: api.DeliveryConfig{
				Endpoint:     viper.GetString("delivery-endpoint"),
				TokenURL:     viper.GetString("delivery-token-url"),
				ClientID:     viper.GetString("delivery-client-id"),
				ClientSecret: viper.GetString("delivery-client-secret"),
			},
		},
	}
}

type Args struct {
	ServerURL    string
	ServerConfig api.ServerConfig
}

func (args Args) Validate() bool {
	return args.ServerURL != "" && args.ServerConfig.OIDC.IssuerURL != "" && args.ServerConfig.OIDC.ClientID != ""
}
