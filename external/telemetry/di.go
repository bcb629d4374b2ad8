package telemetry

import (
	"github.com/hfcRed/Agent-8s-sub000/internal/config"
	internaltelemetry "github.com/hfcRed/Agent-8s-sub000/internal/telemetry"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (internaltelemetry.Tracker, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewHTTPTracker(cfg.TelemetryWebhookURL), nil
	})
}
