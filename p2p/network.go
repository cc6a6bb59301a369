//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package p2p

import (
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/markkurossi/rep3"
)

// Peer is a connected protocol peer.
type Peer struct {
	ID   int
	Conn *Conn
}

// Network implements the full-mesh peer-to-peer network of one
// party. Connections are established once during SETUP and owned by
// a single evaluator for the session's duration.
type Network struct {
	ID       int
	m        sync.Mutex
	peers    map[int]*Peer
	listener net.Listener
}

// NewNetwork creates a new network listening on addr.
func NewNetwork(addr string, id int) (*Network, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(rep3.ErrNetwork, "listen %s: %v", addr, err)
	}
	return &Network{
		ID:       id,
		peers:    make(map[int]*Peer),
		listener: listener,
	}, nil
}

// NewTestNetwork creates a network over pre-connected streams, used
// by tests that run all parties in one process.
func NewTestNetwork(id int, conns map[int]net.Conn) *Network {
	nw := &Network{
		ID:    id,
		peers: make(map[int]*Peer),
	}
	for peer, conn := range conns {
		nw.peers[peer] = &Peer{
			ID:   peer,
			Conn: NewConn(conn),
		}
	}
	return nw
}

// Connect establishes connections to all roster peers: the party
// dials peers with a larger index and accepts peers with a smaller
// one. Dialing is retried at most retries times; retries happen only
// here, never mid-round.
func (nw *Network) Connect(roster map[int]string, retries int,
	verbose bool) error {

	var accept int
	for id := range roster {
		if id < nw.ID {
			accept++
		}
	}

	for id, addr := range roster {
		if id <= nw.ID {
			continue
		}
		conn, err := nw.dial(addr, retries, verbose)
		if err != nil {
			return err
		}
		if err := conn.SendUint32(nw.ID); err != nil {
			conn.Close()
			return IOError(err)
		}
		if err := conn.Flush(); err != nil {
			conn.Close()
			return IOError(err)
		}
		nw.addPeer(id, conn)
	}

	for i := 0; i < accept; i++ {
		nc, err := nw.listener.Accept()
		if err != nil {
			return errors.Wrapf(rep3.ErrNetwork, "accept: %v", err)
		}
		conn := NewConn(nc)
		id, err := conn.ReceiveUint32()
		if err != nil {
			conn.Close()
			return IOError(err)
		}
		if _, ok := roster[id]; !ok || id == nw.ID {
			conn.Close()
			return errors.Wrapf(rep3.ErrNetwork,
				"handshake from unknown peer %d", id)
		}
		if err := nw.addPeer(id, conn); err != nil {
			conn.Close()
			return err
		}
	}

	return nil
}

func (nw *Network) dial(addr string, retries int, verbose bool) (
	*Conn, error) {

	var err error
	for i := 0; i <= retries; i++ {
		var nc net.Conn
		nc, err = net.Dial("tcp", addr)
		if err == nil {
			return NewConn(nc), nil
		}
		delay := time.Second
		if verbose {
			log.Printf("NW %d: connect to %s failed, retrying in %s\n",
				nw.ID, addr, delay)
		}
		<-time.After(delay)
	}
	return nil, errors.Wrapf(rep3.ErrNetwork, "connect %s: %v", addr, err)
}

func (nw *Network) addPeer(id int, conn *Conn) error {
	nw.m.Lock()
	defer nw.m.Unlock()

	if _, ok := nw.peers[id]; ok {
		return errors.Wrapf(rep3.ErrNetwork, "peer %d already connected", id)
	}
	nw.peers[id] = &Peer{
		ID:   id,
		Conn: conn,
	}
	return nil
}

// Peer returns the connected peer with the argument ID.
func (nw *Network) Peer(id int) (*Peer, error) {
	nw.m.Lock()
	defer nw.m.Unlock()

	peer, ok := nw.peers[id]
	if !ok {
		return nil, errors.Wrapf(rep3.ErrNetwork, "unknown peer %d", id)
	}
	return peer, nil
}

// NumPeers returns the number of connected peers.
func (nw *Network) NumPeers() int {
	nw.m.Lock()
	defer nw.m.Unlock()

	return len(nw.peers)
}

// SetRoundDeadline arms the receive deadline on all peer
// connections. A zero duration clears the deadline.
func (nw *Network) SetRoundDeadline(d time.Duration) {
	var t time.Time
	if d > 0 {
		t = time.Now().Add(d)
	}
	nw.m.Lock()
	defer nw.m.Unlock()

	for _, peer := range nw.peers {
		peer.Conn.SetReadDeadline(t)
	}
}

// Stats returns the I/O stats from the network.
func (nw *Network) Stats() IOStats {
	nw.m.Lock()
	defer nw.m.Unlock()

	result := NewIOStats()
	for _, peer := range nw.peers {
		result = result.Add(peer.Conn.Stats)
	}
	return result
}

// Close closes the listener and all peer connections.
func (nw *Network) Close() {
	nw.m.Lock()
	defer nw.m.Unlock()

	// The peer map stays populated so that Stats remains readable
	// after the session ends.
	for _, peer := range nw.peers {
		peer.Conn.Close()
	}
	if nw.listener != nil {
		nw.listener.Close()
	}
}

func (nw *Network) String() string {
	return fmt.Sprintf("party %d (%d peers)", nw.ID, len(nw.peers))
}
