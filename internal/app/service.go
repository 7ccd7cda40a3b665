package app

import (
	"time"

	"aptlyctl/internal/adapters"
	"aptlyctl/internal/core"
	"aptlyctl/internal/ports"
	"aptlyctl/internal/types"
)

type Service struct {
	Settings    types.Settings
	Config      ports.ConfigLoaderPort
	Aptly       ports.AptlyPort
	StateReader ports.StateReaderPort
	Keys        ports.KeyImporterPort
	Clock       func() time.Time
}

func NewService(settings types.Settings) Service {
	settings = settings.WithDefaults()
	runner := adapters.NewExecRunner()
	aptly := adapters.NewAptlyCLI(runner, settings)
	return Service{
		Settings:    settings,
		Config:      adapters.NewConfigFileAdapter(),
		Aptly:       aptly,
		StateReader: adapters.NewAptlyStateReader(aptly),
		Keys:        adapters.NewGPGKeyAdapter(runner, settings),
		Clock:       time.Now,
	}
}

func (s Service) reconciler() core.Reconciler {
	return core.NewReconciler(s.Aptly, s.StateReader, s.Keys, s.now)
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock().UTC()
}
