package offline

import (
	"bytes"
	"io"
	"net/http"
	"strconv"
)

// HandlerTransport serves requests from an in-process http.Handler. The worker
// uses it to reach its own app-shell routes without a network hop.
type HandlerTransport struct {
	Handler http.Handler
}

func (t HandlerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rec := newRecorder()
	t.Handler.ServeHTTP(rec, req)
	return rec.response(req), nil
}

// recorder buffers a handler's response.
type recorder struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newRecorder() *recorder {
	return &recorder{header: make(http.Header)}
}

func (r *recorder) Header() http.Header { return r.header }

func (r *recorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
}

func (r *recorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.body.Write(p)
}

func (r *recorder) statusCode() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *recorder) entry() Entry {
	return Entry{
		Status: r.statusCode(),
		Header: r.header.Clone(),
		Body:   bytes.Clone(r.body.Bytes()),
	}
}

func (r *recorder) response(req *http.Request) *http.Response {
	status := r.statusCode()
	header := r.header.Clone()
	header.Set("Content-Length", strconv.Itoa(r.body.Len()))
	return &http.Response{
		Status:        strconv.Itoa(status) + " " + http.StatusText(status),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(bytes.Clone(r.body.Bytes()))),
		ContentLength: int64(r.body.Len()),
		Request:       req,
	}
}
