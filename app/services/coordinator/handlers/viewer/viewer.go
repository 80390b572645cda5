// Package viewer serves the page that shows the pool's event stream in a
// browser.
package viewer

import (
	"context"
	_ "embed"
	"net/http"

	"github.com/ardanlabs/powpool/foundation/web"
)

//go:embed index.html
var index []byte

// Index serves the viewer page. The page connects back to the events
// websocket and polls the status endpoint.
func Index(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if err := web.SetStatusCode(ctx, http.StatusOK); err != nil {
		return err
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(index); err != nil {
		return err
	}

	return nil
}
