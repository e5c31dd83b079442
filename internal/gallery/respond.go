package gallery

import (
	"fmt"
	"io"
	"net/http"

	"github.com/wb-go/wbf/ginext"
)

// Failure is the JSON body of an error response.
type Failure struct {
	Message string `json:"message"`
}

// ok sends a 200 JSON response.
func ok(c *ginext.Context, result interface{}) {
	c.JSON(http.StatusOK, result)
}

// fail sends an error JSON response with the given status.
func fail(c *ginext.Context, status int, err error) {
	c.JSON(status, Failure{Message: err.Error()})
}

// jpeg streams an image from r.
func jpeg(c *ginext.Context, r io.Reader) {
	c.DataFromReader(http.StatusOK, -1, "image/jpeg", r, nil)
}

// malformed writes a plain-text response whose Content-Length header
// cannot be parsed, the way the device firmware answers uploads.
func malformed(c *ginext.Context, status int, body string) {
	conn, buf, err := c.Writer.Hijack()
	if err != nil {
		c.String(status, body)
		return
	}
	defer conn.Close()

	fmt.Fprintf(buf, "HTTP/1.1 %d %s\r\n", status, http.StatusText(status))
	fmt.Fprintf(buf, "Content-Type: text/plain\r\n")
	fmt.Fprintf(buf, "Content-Length: %d, %d\r\n", len(body), len(body)+2)
	fmt.Fprintf(buf, "Connection: close\r\n\r\n")
	buf.WriteString(body)
	_ = buf.Flush()
}
