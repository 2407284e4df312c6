// Package app wires the services over a store. Both binaries and the HTTP
// tests build their object graph through it.
package app

import (
	"time"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/events"
	apphttp "github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http"
	creditHandler "github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http/credit"
	importHandler "github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http/importcsv"
	orderHandler "github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http/order"
	revisionHandler "github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http/revision"
	statsHandler "github.com/pontocomjunior2/startt-voice-studio-sub000/internal/http/stats"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/importer"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/order"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/revision"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/stats"
)

// Store is what the postgres and memory stores both provide.
type Store interface {
	Credits() credit.Repository
	Orders() order.Repository
	Revisions() revision.Repository
	stats.Repository
}

type Options struct {
	Publisher       events.Publisher
	DefaultValidity time.Duration
	ImportLocation  *time.Location
	Now             func() time.Time
}

type Services struct {
	Credits   *credit.Service
	Orders    *order.Service
	Revisions *revision.Service
	Stats     *stats.Service
	Import    *importer.Service
}

func NewServices(st Store, opts Options) *Services {
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}

	if opts.Now == nil {
		opts.Now = time.Now
	}

	credits := credit.NewService(st.Credits(),
		credit.WithClock(opts.Now),
		credit.WithPublisher(opts.Publisher),
		credit.WithDefaultValidity(opts.DefaultValidity),
	)

	orders := order.NewService(st.Orders(), credits.Ledger(),
		order.WithClock(opts.Now),
		order.WithPublisher(opts.Publisher),
	)

	revisions := revision.NewService(st.Revisions(), orders,
		revision.WithClock(opts.Now),
		revision.WithPublisher(opts.Publisher),
	)

	return &Services{
		Credits:   credits,
		Orders:    orders,
		Revisions: revisions,
		Stats:     stats.NewService(st, opts.Now),
		Import:    importer.NewService(opts.ImportLocation),
	}
}

// Handlers builds one HTTP handler per service.
func (s *Services) Handlers() apphttp.Handlers {
	return apphttp.Handlers{
		Orders:    orderHandler.NewHandler(s.Orders),
		Revisions: revisionHandler.NewHandler(s.Revisions),
		Credits:   creditHandler.NewHandler(s.Credits),
		Import:    importHandler.NewHandler(s.Import, s.Credits),
		Stats:     statsHandler.NewHandler(s.Stats),
	}
}
