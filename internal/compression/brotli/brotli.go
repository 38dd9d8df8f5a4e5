// Package brotli registers a brotli compressor with gRPC. Importing it is
// enough for a server to accept "br" encoded messages; clients opt in with
// grpc.UseCompressor(brotli.Name).
package brotli

import (
	"io"
	"sync"

	"github.com/andybalholm/brotli"
	"google.golang.org/grpc/encoding"
)

// Name is the content-coding registered with gRPC.
const Name = "br"

// DefaultLevel balances speed and ratio for chat-sized payloads.
const DefaultLevel = 4

func init() {
	encoding.RegisterCompressor(newCompressor(DefaultLevel))
}

type compressor struct {
	level      int
	writerPool sync.Pool
	readerPool sync.Pool
}

func newCompressor(level int) *compressor {
	c := &compressor{level: level}
	c.writerPool.New = func() any {
		return &writer{Writer: brotli.NewWriterLevel(io.Discard, c.level), pool: &c.writerPool}
	}
	return c
}

type writer struct {
	*brotli.Writer
	pool *sync.Pool
}

func (w *writer) Close() error {
	defer w.pool.Put(w)
	return w.Writer.Close()
}

type reader struct {
	*brotli.Reader
	pool *sync.Pool
}

func (r *reader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	if err == io.EOF {
		r.pool.Put(r)
	}
	return n, err
}

func (c *compressor) Compress(w io.Writer) (io.WriteCloser, error) {
	bw := c.writerPool.Get().(*writer)
	bw.Reset(w)
	return bw, nil
}

func (c *compressor) Decompress(r io.Reader) (io.Reader, error) {
	br, ok := c.readerPool.Get().(*reader)
	if !ok {
		return &reader{Reader: brotli.NewReader(r), pool: &c.readerPool}, nil
	}
	if err := br.Reset(r); err != nil {
		c.readerPool.Put(br)
		return nil, err
	}
	return br, nil
}

func (c *compressor) Name() string {
	return Name
}
