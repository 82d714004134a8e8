// Copyright 2015 Light Code Labs, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Forked from Caddy's fastcgi client, itself forked Jan. 2015 from
// http://bitbucket.org/PinIdea/fcgi_client (which is forked from
// https://code.google.com/p/go-fastcgi-client/).

// Package fastcgi implements a FastCGI client for bridging requests to
// an application server such as php-fpm.
package fastcgi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httputil"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	version1          uint8 = 1
	typeBeginRequest  uint8 = 1
	typeAbortRequest  uint8 = 2
	typeEndRequest    uint8 = 3
	typeParams        uint8 = 4
	typeStdin         uint8 = 5
	typeStdout        uint8 = 6
	typeStderr        uint8 = 7
	roleResponder     uint16 = 1
	maxWrite                = 65500
	maxPad                  = 255
)

type header struct {
	Version       uint8
	Type          uint8
	ID            uint16
	ContentLength uint16
	PaddingLength uint8
	Reserved      uint8
}

var pad [maxPad]byte

func (h *header) init(recType uint8, reqID uint16, contentLength int) {
	h.Version = version1
	h.Type = recType
	h.ID = reqID
	h.ContentLength = uint16(contentLength)
	h.PaddingLength = uint8(-contentLength & 7)
}

type record struct {
	h    header
	rbuf []byte
}

func (rec *record) read(r io.Reader) ([]byte, error) {
	if err := binary.Read(r, binary.BigEndian, &rec.h); err != nil {
		return nil, err
	}
	if rec.h.Version != version1 {
		return nil, errors.New("fastcgi: invalid header version")
	}
	if rec.h.Type == typeEndRequest {
		return nil, io.EOF
	}
	n := int(rec.h.ContentLength) + int(rec.h.PaddingLength)
	if len(rec.rbuf) < n {
		rec.rbuf = make([]byte, n)
	}
	if _, err := io.ReadFull(r, rec.rbuf[:n]); err != nil {
		return nil, err
	}
	return rec.rbuf[:int(rec.h.ContentLength)], nil
}

// Client speaks the FastCGI wire protocol over one connection. A
// Client is not safe for concurrent use; the pool hands out one at a
// time.
type Client struct {
	mu        sync.Mutex
	conn      net.Conn
	h         header
	buf       bytes.Buffer
	stderr    bytes.Buffer
	reqID     uint16
	dialedAt  time.Time
	useCount  int
}

// Dial opens a new FastCGI connection.
func Dial(ctx context.Context, network, address string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, network, address)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn, reqID: 1, dialedAt: time.Now()}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// SetReadTimeout arms a read deadline on the underlying connection.
func (c *Client) SetReadTimeout(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return c.conn.SetReadDeadline(time.Now().Add(d))
}

// SetWriteTimeout arms a write deadline on the underlying connection.
func (c *Client) SetWriteTimeout(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return c.conn.SetWriteDeadline(time.Now().Add(d))
}

func (c *Client) writeRecord(recType uint8, content []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.Reset()
	c.h.init(recType, c.reqID, len(content))
	if err := binary.Write(&c.buf, binary.BigEndian, c.h); err != nil {
		return err
	}
	if _, err := c.buf.Write(content); err != nil {
		return err
	}
	if _, err := c.buf.Write(pad[:c.h.PaddingLength]); err != nil {
		return err
	}
	_, err := c.conn.Write(c.buf.Bytes())
	return err
}

func (c *Client) writeBeginRequest() error {
	b := [8]byte{byte(roleResponder >> 8), byte(roleResponder), 0}
	return c.writeRecord(typeBeginRequest, b[:])
}

func (c *Client) writePairs(recType uint8, pairs map[string]string) error {
	w := newStreamWriter(c, recType)
	b := make([]byte, 8)
	nn := 0
	for k, v := range pairs {
		n := encodeSize(b, uint32(len(k)))
		n += encodeSize(b[n:], uint32(len(v)))
		m := n + len(k) + len(v)
		if nn+m > maxWrite {
			if err := w.Flush(); err != nil {
				return err
			}
			nn = 0
		}
		nn += m
		if _, err := w.Write(b[:n]); err != nil {
			return err
		}
		if _, err := w.WriteString(k); err != nil {
			return err
		}
		if _, err := w.WriteString(v); err != nil {
			return err
		}
	}
	return w.Close()
}

func encodeSize(b []byte, size uint32) int {
	if size > 127 {
		size |= 1 << 31
		binary.BigEndian.PutUint32(b, size)
		return 4
	}
	b[0] = byte(size)
	return 1
}

// bufStreamWriter splits a byte stream into maxWrite-sized FastCGI
// records of a given type, terminated by an empty record on Close.
type bufStreamWriter struct {
	*bufio.Writer
	s *rawStreamWriter
}

func newStreamWriter(c *Client, recType uint8) *bufStreamWriter {
	s := &rawStreamWriter{c: c, recType: recType}
	return &bufStreamWriter{bufio.NewWriterSize(s, maxWrite), s}
}

func (w *bufStreamWriter) Close() error {
	if err := w.Flush(); err != nil {
		return err
	}
	return w.s.Close()
}

type rawStreamWriter struct {
	c       *Client
	recType uint8
}

func (w *rawStreamWriter) Write(p []byte) (int, error) {
	nn := 0
	for len(p) > 0 {
		n := len(p)
		if n > maxWrite {
			n = maxWrite
		}
		if err := w.c.writeRecord(w.recType, p[:n]); err != nil {
			return nn, err
		}
		nn += n
		p = p[n:]
	}
	return nn, nil
}

func (w *rawStreamWriter) Close() error {
	return w.c.writeRecord(w.recType, nil)
}

type streamReader struct {
	c   *Client
	buf []byte
}

func (r *streamReader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if len(r.buf) == 0 {
		for {
			rec := &record{}
			buf, err := rec.read(r.c.conn)
			if err != nil {
				return 0, err
			}
			if rec.h.Type == typeStderr {
				r.c.stderr.Write(buf)
				continue
			}
			r.buf = buf
			break
		}
	}
	n := len(p)
	if n > len(r.buf) {
		n = len(r.buf)
	}
	copy(p, r.buf[:n])
	r.buf = r.buf[n:]
	return n, nil
}

type clientCloser struct {
	*Client
	io.Reader
}

func (f clientCloser) Close() error { return f.conn.Close() }

// Request sends params and an optional body, and parses the CGI
// response headers out of the FastCGI stdout stream.
func (c *Client) Request(params map[string]string, body io.Reader) (*http.Response, error) {
	if err := c.writeBeginRequest(); err != nil {
		return nil, err
	}
	if err := c.writePairs(typeParams, params); err != nil {
		return nil, err
	}
	stdin := newStreamWriter(c, typeStdin)
	if body != nil {
		if _, err := io.Copy(stdin, body); err != nil {
			return nil, err
		}
	}
	if err := stdin.Close(); err != nil {
		return nil, err
	}

	r := &streamReader{c: c}
	rb := bufio.NewReader(r)
	tp := textproto.NewReader(rb)

	mimeHeader, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, err
	}

	resp := &http.Response{Header: http.Header(mimeHeader)}
	if status := resp.Header.Get("Status"); status != "" {
		parts := strings.SplitN(status, " ", 2)
		resp.StatusCode, err = strconv.Atoi(parts[0])
		if err != nil {
			return nil, err
		}
		if len(parts) > 1 {
			resp.Status = parts[1]
		}
	} else {
		resp.StatusCode = http.StatusOK
	}

	resp.TransferEncoding = resp.Header["Transfer-Encoding"]
	resp.ContentLength, _ = strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)

	if len(resp.TransferEncoding) > 0 && resp.TransferEncoding[0] == "chunked" {
		resp.Body = clientCloser{c, httputil.NewChunkedReader(rb)}
	} else {
		resp.Body = clientCloser{c, io.NopCloser(rb)}
	}
	return resp, nil
}
