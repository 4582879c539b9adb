package server

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// FiberResponseWriter presents a Fiber context as an http.ResponseWriter so
// net/http handlers can be mounted on Fiber routes. The Prometheus scrape
// endpoint uses it to serve promhttp without a second listener.
type FiberResponseWriter struct {
	ctx     *fiber.Ctx
	status  int
	header  http.Header
	flushed bool
}

func NewFiberResponseWriter(ctx *fiber.Ctx) *FiberResponseWriter {
	return &FiberResponseWriter{
		ctx:    ctx,
		status: http.StatusOK,
		header: make(http.Header),
	}
}

func (w *FiberResponseWriter) Header() http.Header {
	return w.header
}

// WriteHeader records the status code. Headers are not sent until the first
// Write, matching net/http semantics closely enough for promhttp.
func (w *FiberResponseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
}

func (w *FiberResponseWriter) Write(data []byte) (int, error) {
	if !w.flushed {
		for key, values := range w.header {
			for _, value := range values {
				w.ctx.Set(key, value)
			}
		}
		w.ctx.Status(w.status)
		w.flushed = true
	}
	return w.ctx.Write(data)
}
