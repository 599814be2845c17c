// Package extract turns raw document bytes into structured field sets via an
// external document-understanding service.
package extract

import (
	"context"
	"errors"

	"github.com/andklim/insurebot/types"
)

// ErrExtraction marks every failure to produce a field set: bad image,
// unsupported content, service error. The flow keeps the session at the
// document-awaiting step and asks the user to resend.
var ErrExtraction = errors.New("document extraction failed")

// Extractor is the narrow contract the conversation flow depends on.
type Extractor interface {
	Extract(ctx context.Context, data []byte, filename string, class types.DocumentClass) (types.FieldSet, error)
}
