package api

import (
	"compress/gzip"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// DecompressRequest unwraps gzip request bodies before handlers read them.
// Identity is passed through; any other content coding is answered with 415.
func DecompressRequest() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			coding, ok := contentCoding(req.Header.Get(echo.HeaderContentEncoding))
			if !ok {
				return c.JSON(http.StatusUnsupportedMediaType, errorResponse{Error: "read body failed: unsupported content encoding"})
			}
			if coding != "gzip" {
				return next(c)
			}

			body := req.Body
			gr, err := gzip.NewReader(body)
			if err != nil {
				_ = body.Close()
				return c.JSON(http.StatusBadRequest, errorResponse{Error: "read body failed: invalid gzip body"})
			}
			req.Body = &gzipBody{Reader: gr, raw: body}
			req.ContentLength = -1
			req.Header.Del(echo.HeaderContentEncoding)
			req.Header.Del(echo.HeaderContentLength)
			return next(c)
		}
	}
}

// contentCoding reduces a Content-Encoding header to "" (identity) or "gzip".
// Stacked codings other than identity are not supported.
func contentCoding(header string) (string, bool) {
	coding := ""
	for _, enc := range strings.Split(header, ",") {
		switch strings.ToLower(strings.TrimSpace(enc)) {
		case "", "identity":
		case "gzip", "x-gzip":
			if coding != "" {
				return "", false
			}
			coding = "gzip"
		default:
			return "", false
		}
	}
	return coding, true
}

type gzipBody struct {
	*gzip.Reader
	raw io.Closer
}

func (g *gzipBody) Close() error {
	err := g.Reader.Close()
	if cerr := g.raw.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
