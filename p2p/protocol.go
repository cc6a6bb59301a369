//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

// Package p2p implements the point-to-point transport between the
// protocol parties: framed connections, the full-mesh network, and
// round-tagged message headers.
package p2p

import (
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/markkurossi/rep3"
)

const (
	numBuffers   = 3
	writeBufSize = 64 * 1024
	readBufSize  = 1024 * 1024
)

// Conn implements a framed protocol connection. Values are encoded
// in big-endian byte order; writes are buffered and handed to a
// background writer on Flush so that a party is never blocked on a
// peer that has not started reading yet.
type Conn struct {
	conn      io.ReadWriter
	writeBuf  []byte
	writePos  int
	readBuf   []byte
	readStart int
	readEnd   int
	Stats     IOStats

	fromWriter chan []byte
	toWriter   chan []byte
	writerErr  error
}

// IOStats implements I/O statistics.
type IOStats struct {
	Sent    *atomic.Uint64
	Recvd   *atomic.Uint64
	Flushed *atomic.Uint64
}

// NewIOStats creates a new I/O statistics object.
func NewIOStats() IOStats {
	return IOStats{
		Sent:    new(atomic.Uint64),
		Recvd:   new(atomic.Uint64),
		Flushed: new(atomic.Uint64),
	}
}

// Add adds the argument stats to this IOStats and returns the sum.
func (stats IOStats) Add(o IOStats) IOStats {
	result := NewIOStats()
	result.Sent.Store(stats.Sent.Load() + o.Sent.Load())
	result.Recvd.Store(stats.Recvd.Load() + o.Recvd.Load())
	result.Flushed.Store(stats.Flushed.Load() + o.Flushed.Load())
	return result
}

// Sum returns sum of sent and received bytes.
func (stats IOStats) Sum() uint64 {
	return stats.Sent.Load() + stats.Recvd.Load()
}

// NewConn creates a new connection around the argument connection.
func NewConn(conn io.ReadWriter) *Conn {
	c := &Conn{
		conn:       conn,
		readBuf:    make([]byte, readBufSize),
		fromWriter: make(chan []byte, numBuffers),
		toWriter:   make(chan []byte, numBuffers),
		Stats:      NewIOStats(),
	}

	go c.writer()

	c.writeBuf = <-c.fromWriter

	return c
}

func (c *Conn) writer() {
	for i := 0; i < numBuffers; i++ {
		c.fromWriter <- make([]byte, writeBufSize)
	}

	for buf := range c.toWriter {
		_, err := c.conn.Write(buf)
		if err != nil {
			c.writerErr = err
		}
		c.fromWriter <- buf[0:cap(buf)]
	}
	close(c.fromWriter)
}

// SetReadDeadline sets the receive deadline if the underlying
// connection supports deadlines. It is a no-op otherwise.
func (c *Conn) SetReadDeadline(t time.Time) error {
	if nc, ok := c.conn.(net.Conn); ok {
		return nc.SetReadDeadline(t)
	}
	return nil
}

// Flush flushes any pending data in the connection.
func (c *Conn) Flush() error {
	if c.writePos > 0 {
		c.Stats.Sent.Add(uint64(c.writePos))
		c.toWriter <- c.writeBuf[0:c.writePos]

		next := <-c.fromWriter
		if c.writerErr != nil {
			return c.writerErr
		}

		c.writeBuf = next
		c.writePos = 0
		c.Stats.Flushed.Add(1)
	}
	return nil
}

func (c *Conn) fill(n int) error {
	if c.readStart < c.readEnd {
		copy(c.readBuf[0:], c.readBuf[c.readStart:c.readEnd])
		c.readEnd -= c.readStart
		c.readStart = 0
	} else {
		c.readStart = 0
		c.readEnd = 0
	}
	for c.readStart+n > c.readEnd {
		got, err := c.conn.Read(c.readBuf[c.readEnd:])
		if err != nil {
			return err
		}
		c.Stats.Recvd.Add(uint64(got))
		c.readEnd += got
	}
	return nil
}

// Close flushes any pending data and closes the connection.
func (c *Conn) Close() error {
	if err := c.Flush(); err != nil {
		return err
	}
	// Wait that the writer completes.
	close(c.toWriter)
	for range c.fromWriter {
	}
	if c.writerErr != nil {
		return c.writerErr
	}
	if closer, ok := c.conn.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (c *Conn) need(count int) error {
	if c.writePos+count > len(c.writeBuf) {
		return c.Flush()
	}
	return nil
}

// SendByte sends a byte value.
func (c *Conn) SendByte(val byte) error {
	if err := c.need(1); err != nil {
		return err
	}
	c.writeBuf[c.writePos] = val
	c.writePos++
	return nil
}

// SendUint32 sends an uint32 value.
func (c *Conn) SendUint32(val int) error {
	if err := c.need(4); err != nil {
		return err
	}
	bo.PutUint32(c.writeBuf[c.writePos:], uint32(val))
	c.writePos += 4
	return nil
}

// SendUint64 sends an uint64 value.
func (c *Conn) SendUint64(val uint64) error {
	if err := c.need(8); err != nil {
		return err
	}
	bo.PutUint64(c.writeBuf[c.writePos:], val)
	c.writePos += 8
	return nil
}

// SendData sends binary data.
func (c *Conn) SendData(val []byte) error {
	if err := c.need(4 + len(val)); err != nil {
		return err
	}
	if err := c.SendUint32(len(val)); err != nil {
		return err
	}
	copy(c.writeBuf[c.writePos:], val)
	c.writePos += len(val)
	return nil
}

// SendString sends a string value.
func (c *Conn) SendString(val string) error {
	return c.SendData([]byte(val))
}

// ReceiveByte receives a byte value.
func (c *Conn) ReceiveByte() (byte, error) {
	if c.readStart+1 > c.readEnd {
		if err := c.fill(1); err != nil {
			return 0, err
		}
	}
	val := c.readBuf[c.readStart]
	c.readStart++
	return val, nil
}

// ReceiveUint32 receives an uint32 value.
func (c *Conn) ReceiveUint32() (int, error) {
	if c.readStart+4 > c.readEnd {
		if err := c.fill(4); err != nil {
			return 0, err
		}
	}
	val := bo.Uint32(c.readBuf[c.readStart:])
	c.readStart += 4

	return int(val), nil
}

// ReceiveUint64 receives an uint64 value.
func (c *Conn) ReceiveUint64() (uint64, error) {
	if c.readStart+8 > c.readEnd {
		if err := c.fill(8); err != nil {
			return 0, err
		}
	}
	val := bo.Uint64(c.readBuf[c.readStart:])
	c.readStart += 8

	return val, nil
}

// ReceiveData receives binary data. The length prefix comes from the
// peer and is checked against the receive buffer size so that a
// deviating peer can never park the receiver on an unsatisfiable
// read.
func (c *Conn) ReceiveData() ([]byte, error) {
	n, err := c.ReceiveUint32()
	if err != nil {
		return nil, err
	}
	if n > readBufSize {
		return nil, errors.Wrapf(rep3.ErrNetwork,
			"invalid data length %d: max %d", n, readBufSize)
	}
	if c.readStart+n > c.readEnd {
		if err := c.fill(n); err != nil {
			return nil, err
		}
	}

	result := make([]byte, n)
	copy(result, c.readBuf[c.readStart:c.readStart+n])
	c.readStart += n

	return result, nil
}

// ReceiveString receives a string value.
func (c *Conn) ReceiveString() (string, error) {
	data, err := c.ReceiveData()
	if err != nil {
		return "", err
	}
	return string(data), nil
}
