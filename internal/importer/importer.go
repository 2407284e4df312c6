package importer

import (
	"io"

	"github.com/pontocomjunior2/startt-voice-studio-sub000/internal/credit"
)

// Gateway names the payment provider whose export is being imported.
type Gateway string

const (
	GatewayCheckout Gateway = "checkout"
)

type Importer interface {
	Parse(r io.Reader) ([]credit.GrantParams, error)
}
