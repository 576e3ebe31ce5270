package accessory

import "context"

// DefaultReceiverApp is the receiver application launched when the primary
// device cannot be powered on directly (Default Media Receiver).
const DefaultReceiverApp = "CC1AD845"

// PrimaryLink is the part of the primary device used for power control.
// *SimpleRemoteLink satisfies it.
type PrimaryLink interface {
	CheckAlive(ctx context.Context) bool
	SendKey(ctx context.Context, key string) error
}

// Launcher is the part of the secondary device used as a power-on fallback.
// *SessionedLink satisfies it.
type Launcher interface {
	Launch(ctx context.Context, appID string) error
}

// PowerController combines the primary and secondary links into one power
// switch with a one-shot power-on fallback.
type PowerController struct {
	primary   PrimaryLink
	secondary Launcher
	appID     string
	logger    Logger
}

// NewPowerController creates a controller. An empty appID selects
// DefaultReceiverApp.
func NewPowerController(primary PrimaryLink, secondary Launcher, appID string, logger Logger) *PowerController {
	if appID == "" {
		appID = DefaultReceiverApp
	}
	return &PowerController{
		primary:   primary,
		secondary: secondary,
		appID:     appID,
		logger:    orNop(logger),
	}
}

// SetPower switches the accessory on or off.
//
// Power-on tries the primary first; if that fails for any reason the
// secondary receiver app is launched instead and its result is returned. The
// primary's error is dropped once the fallback has run. Power-off only ever
// uses the primary and returns its error unchanged.
func (p *PowerController) SetPower(ctx context.Context, on bool) error {
	if !on {
		if err := p.primary.SendKey(ctx, KeyPowerOff); err != nil {
			p.logger.Error("could not turn primary device off", "error", err)
			return err
		}
		p.logger.Debug("primary device turned off")
		return nil
	}

	err := p.primary.SendKey(ctx, KeyPowerOn)
	if err == nil {
		p.logger.Debug("primary device turned on")
		return nil
	}

	p.logger.Debug("primary power on failed, falling back to secondary launch", "error", err)
	if fbErr := p.secondary.Launch(ctx, p.appID); fbErr != nil {
		p.logger.Error("power on fallback failed", "error", fbErr)
		return fbErr
	}

	p.logger.Debug("secondary receiver launched as power on fallback", "app_id", p.appID)
	return nil
}

// Power reports whether the primary device is alive. It never fails.
func (p *PowerController) Power(ctx context.Context) bool {
	return p.primary.CheckAlive(ctx)
}
