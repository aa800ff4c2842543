package httpserver

import (
	"io"
	"net/http"

	contractchat "github.com/devflow/devflow/internal/contracts/v1/chat"
)

// streamWriter is the FragmentSink for one /ask response. Headers are committed
// with the first fragment; every fragment is flushed as its own chunk.
type streamWriter struct {
	w         http.ResponseWriter
	rc        *http.ResponseController
	committed bool
}

func newStreamWriter(w http.ResponseWriter) *streamWriter {
	return &streamWriter{w: w, rc: http.NewResponseController(w)}
}

func (sw *streamWriter) commit() {
	if sw.committed {
		return
	}
	h := sw.w.Header()
	h.Set("Content-Type", contractchat.StreamContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("X-Content-Type-Options", "nosniff")
	// No Content-Length, so net/http uses chunked transfer encoding.
	sw.w.WriteHeader(http.StatusOK)
	sw.committed = true
}

func (sw *streamWriter) WriteFragment(fragment string) error {
	sw.commit()
	if _, err := io.WriteString(sw.w, fragment); err != nil {
		return err
	}
	return sw.rc.Flush()
}
