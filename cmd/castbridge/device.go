package main

import (
	"context"
	"fmt"

	"github.com/nerrad567/castbridge/internal/accessory"
	"github.com/nerrad567/castbridge/internal/bridges/cast"
	"github.com/nerrad567/castbridge/internal/bridges/samsung"
	"github.com/nerrad567/castbridge/internal/infrastructure/config"
	"github.com/nerrad567/castbridge/internal/infrastructure/logging"
)

// receiverAddress returns the configured receiver address, resolving
// chromecast.name over mDNS when no IP is configured.
func receiverAddress(ctx context.Context, cfg config.ChromecastConfig, log *logging.Logger) (string, error) {
	if cfg.IP != "" {
		return cast.Address(cfg.IP, cfg.Port), nil
	}

	r, err := cast.NewDiscoverer(0, discoveryQuery).Resolve(ctx, cfg.Name)
	if err != nil {
		return "", fmt.Errorf("resolving receiver %q: %w", cfg.Name, err)
	}
	log.Info("receiver discovered", "name", r.Name, "model", r.Model, "address", r.Address())
	return r.Address(), nil
}

// newAccessory builds the accessory and its two device transports from cfg.
func newAccessory(ctx context.Context, cfg *config.Config, log *logging.Logger) (*accessory.Accessory, error) {
	tv := samsung.New(samsung.Config{
		IP:      cfg.Accessory.Samsung.IP,
		Port:    cfg.Accessory.Samsung.Port,
		Timeout: cfg.Accessory.Samsung.TimeoutDuration(),
	})
	tv.SetLogger(log.Component("samsung"))

	address, err := receiverAddress(ctx, cfg.Accessory.Chromecast, log)
	if err != nil {
		return nil, err
	}
	receiver := cast.NewClient(cast.Config{})
	receiver.SetLogger(log.Component("cast"))

	return accessory.New(accessory.Config{
		Name:            cfg.Accessory.Name,
		ReceiverAddress: address,
		ReceiverApp:     cfg.Accessory.Chromecast.AppID,
		SendDelay:       cfg.Accessory.SendDelayDuration(),
		PollInterval:    cfg.Accessory.PollIntervalDuration(),
	}, tv, receiver, log.Component("accessory")), nil
}
