package importer

import (
	"fmt"
	"io"
	"time"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/importer/gateway"
)

type Service struct {
	checkout Importer
}

// NewService returns an import service reading export dates in loc.
func NewService(loc *time.Location) *Service {
	return &Service{
		checkout: gateway.NewParser(loc),
	}
}

// Import parses an export into grants. An empty gateway means the default
// checkout export.
func (s *Service) Import(gw Gateway, r io.Reader) ([]credit.GrantParams, error) {
	var importer Importer

	switch gw {
	case GatewayCheckout, "":
		importer = s.checkout
	default:
		return nil, fmt.Errorf("unknown gateway: %s", gw)
	}

	return importer.Parse(r)
}
