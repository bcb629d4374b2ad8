package lobby

import (
	"github.com/hfcRed/Agent-8s-sub000/internal/config"
	"github.com/hfcRed/Agent-8s-sub000/internal/discord"
	"github.com/hfcRed/Agent-8s-sub000/internal/history"
	"github.com/hfcRed/Agent-8s-sub000/internal/telemetry"
	"github.com/hfcRed/Agent-8s-sub000/internal/view"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Coordinator, error) {
		cfg := do.MustInvoke[*config.Config](i)
		dc := do.MustInvoke[discord.Client](i)
		vb := do.MustInvoke[view.Builder](i)
		tracker := do.MustInvoke[telemetry.Tracker](i)
		hist := do.MustInvoke[history.Repository](i)
		return NewCoordinator(cfg, dc, vb, tracker, hist), nil
	})
	do.Provide(injector, func(i do.Injector) (*Sweeper, error) {
		cfg := do.MustInvoke[*config.Config](i)
		coordinator := do.MustInvoke[*Coordinator](i)
		return NewSweeper(coordinator, cfg.SweepSchedule), nil
	})
}
