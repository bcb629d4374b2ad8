package view

import (
	internalview "github.com/hfcRed/Agent-8s-sub000/internal/view"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (internalview.Builder, error) {
		return NewEmbedBuilder(), nil
	})
}
