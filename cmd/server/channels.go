package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/unclebandit/outreach-backend/internal/config"
	"github.com/unclebandit/outreach-backend/internal/model"
	"github.com/unclebandit/outreach-backend/internal/provider"
	"github.com/unclebandit/outreach-backend/internal/quota"
	"github.com/unclebandit/outreach-backend/internal/service"
)

// buildChannels assembles provider and quota per channel. A channel without
// credentials gets the console provider when PROVIDER_CONSOLE is set, and no
// provider otherwise (blasts on it answer 503).
func buildChannels(cfg config.Config, rdb *redis.Client, reg prometheus.Registerer, log zerolog.Logger) (map[model.Channel]service.ChannelSetup, error) {
	metrics := provider.NewMetricsCollectors(reg)

	var sms, email provider.Adapter
	var smsName, emailName string
	switch {
	case cfg.SMS.Configured():
		sms = provider.NewSMSGateway(cfg.SMS.GatewayURL, cfg.SMS.AccountSID, cfg.SMS.AuthToken, cfg.SMS.From, cfg.SMS.Timeout)
		smsName = "gateway"
	case cfg.Dispatch.ConsoleProviders:
		sms = provider.NewConsole(model.ChannelSMS.String(), log)
		smsName = "console"
	}

	switch {
	case cfg.Email.Configured():
		mailer, err := provider.NewSMTPMailer(provider.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			Timeout:  cfg.Email.Timeout,
		})
		if err != nil {
			return nil, err
		}
		email = mailer
		emailName = "smtp"
	case cfg.Dispatch.ConsoleProviders:
		email = provider.NewConsole(model.ChannelEmail.String(), log)
		emailName = "console"
	}

	channels := map[model.Channel]service.ChannelSetup{
		model.ChannelSMS:   {Quota: newTracker(rdb, model.ChannelSMS, cfg.Quota.SMSDaily)},
		model.ChannelEmail: {Quota: newTracker(rdb, model.ChannelEmail, cfg.Quota.EmailDaily)},
	}
	if sms != nil {
		setup := channels[model.ChannelSMS]
		setup.Provider = provider.NewMetrics(smsName, model.ChannelSMS.String(), provider.NewRateLimited(sms, cfg.SMS.RatePerSec), metrics)
		channels[model.ChannelSMS] = setup
	} else {
		log.Warn().Msg("sms provider not configured")
	}
	if email != nil {
		setup := channels[model.ChannelEmail]
		setup.Provider = provider.NewMetrics(emailName, model.ChannelEmail.String(), provider.NewRateLimited(email, cfg.Email.RatePerSec), metrics)
		channels[model.ChannelEmail] = setup
	} else {
		log.Warn().Msg("email provider not configured")
	}
	return channels, nil
}

func newTracker(rdb *redis.Client, ch model.Channel, limit int) quota.Tracker {
	if rdb != nil {
		return quota.NewRedisTracker(rdb, ch.String(), limit)
	}
	return quota.NewMemoryTracker(limit)
}
