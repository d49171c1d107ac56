// Package stun implements the minimal RFC 5389 client this node needs:
// send a Binding Request, read back the reflexive address from a Binding
// Success Response's XOR-MAPPED-ADDRESS attribute. No other package in
// the retrieved corpus carries a retrievable STUN client implementation
// (only go.mod manifests reference pion/stun, with no importable source),
// so this is written directly against the RFC over the standard net
// package, in the same direct-protocol-over-net style the teacher uses
// for its own UDP listener setup.
package stun

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/big"
	"net"
	"time"
)

const (
	magicCookie uint32 = 0x2112A442

	typeBindingRequest        uint16 = 0x0001
	typeBindingSuccessResp    uint16 = 0x0101
	attrXorMappedAddress      uint16 = 0x0020
	familyIPv4                byte   = 0x01
	familyIPv6                byte   = 0x02
	transactionIDLength              = 12
	headerLength                     = 20

	defaultTimeout = 5 * time.Second
)

// ErrUnreachable is returned when no server in the list answers within
// its timeout.
var ErrUnreachable = fmt.Errorf("stun: no server reachable")

// Discover tries each address in servers, in random order, and returns
// the first successfully discovered reflexive address. conn is used to
// send/receive, so the discovered address is the reflexive mapping of
// conn's own local port.
func Discover(conn *net.UDPConn, servers []string) (*net.UDPAddr, error) {
	order := shuffle(servers)
	var lastErr error
	for _, server := range order {
		addr, err := bindingRequest(conn, server, defaultTimeout)
		if err != nil {
			lastErr = err
			continue
		}
		return addr, nil
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: last error: %v", ErrUnreachable, lastErr)
	}
	return nil, ErrUnreachable
}

func shuffle(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	for i := len(out) - 1; i > 0; i-- {
		jBig, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			continue
		}
		j := int(jBig.Int64())
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func bindingRequest(conn *net.UDPConn, server string, timeout time.Duration) (*net.UDPAddr, error) {
	raddr, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", server, err)
	}

	txID := make([]byte, transactionIDLength)
	if _, err := rand.Read(txID); err != nil {
		return nil, fmt.Errorf("generate transaction id: %w", err)
	}

	req := make([]byte, headerLength)
	binary.BigEndian.PutUint16(req[0:2], typeBindingRequest)
	binary.BigEndian.PutUint16(req[2:4], 0) // length: no attributes
	binary.BigEndian.PutUint32(req[4:8], magicCookie)
	copy(req[8:20], txID)

	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := conn.WriteToUDP(req, raddr); err != nil {
		return nil, fmt.Errorf("send binding request to %s: %w", server, err)
	}

	if err := conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	buf := make([]byte, 1500)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			return nil, fmt.Errorf("read binding response from %s: %w", server, err)
		}
		if from.IP.Equal(raddr.IP) && from.Port == raddr.Port {
			return parseBindingResponse(buf[:n], txID)
		}
		// Not from the server we queried (e.g. a stray late reply from a
		// previous attempt) — keep waiting until the deadline.
	}
}

func parseBindingResponse(data, txID []byte) (*net.UDPAddr, error) {
	if len(data) < headerLength {
		return nil, fmt.Errorf("stun: response shorter than header (%d bytes)", len(data))
	}
	msgType := binary.BigEndian.Uint16(data[0:2])
	msgLen := int(binary.BigEndian.Uint16(data[2:4]))
	cookie := binary.BigEndian.Uint32(data[4:8])
	respTxID := data[8:20]

	if msgType != typeBindingSuccessResp {
		return nil, fmt.Errorf("stun: unexpected message type 0x%04x", msgType)
	}
	if cookie != magicCookie {
		return nil, fmt.Errorf("stun: magic cookie mismatch")
	}
	if !equalBytes(respTxID, txID) {
		return nil, fmt.Errorf("stun: transaction id mismatch")
	}
	if headerLength+msgLen > len(data) {
		return nil, fmt.Errorf("stun: declared length exceeds datagram size")
	}

	attrs := data[headerLength : headerLength+msgLen]
	for len(attrs) >= 4 {
		attrType := binary.BigEndian.Uint16(attrs[0:2])
		attrLen := int(binary.BigEndian.Uint16(attrs[2:4]))
		padded := (attrLen + 3) / 4 * 4
		if 4+padded > len(attrs) {
			return nil, fmt.Errorf("stun: truncated attribute")
		}
		value := attrs[4 : 4+attrLen]

		if attrType == attrXorMappedAddress {
			return parseXorMappedAddress(value, respTxID)
		}
		attrs = attrs[4+padded:]
	}
	return nil, fmt.Errorf("stun: no XOR-MAPPED-ADDRESS attribute in response")
}

func parseXorMappedAddress(value, txID []byte) (*net.UDPAddr, error) {
	if len(value) < 4 {
		return nil, fmt.Errorf("stun: xor-mapped-address too short")
	}
	family := value[1]
	port := binary.BigEndian.Uint16(value[2:4])
	port ^= uint16(magicCookie >> 16)

	switch family {
	case familyIPv4:
		if len(value) < 8 {
			return nil, fmt.Errorf("stun: xor-mapped-address ipv4 too short")
		}
		var cookieBytes [4]byte
		binary.BigEndian.PutUint32(cookieBytes[:], magicCookie)
		ip := make(net.IP, 4)
		for i := 0; i < 4; i++ {
			ip[i] = value[4+i] ^ cookieBytes[i]
		}
		return &net.UDPAddr{IP: ip, Port: int(port)}, nil
	case familyIPv6:
		if len(value) < 20 {
			return nil, fmt.Errorf("stun: xor-mapped-address ipv6 too short")
		}
		var cookieBytes [4]byte
		binary.BigEndian.PutUint32(cookieBytes[:], magicCookie)
		xorKey := append(append([]byte(nil), cookieBytes[:]...), txID...)
		ip := make(net.IP, 16)
		for i := 0; i < 16; i++ {
			ip[i] = value[4+i] ^ xorKey[i]
		}
		return &net.UDPAddr{IP: ip, Port: int(port)}, nil
	default:
		return nil, fmt.Errorf("stun: unknown address family 0x%02x", family)
	}
}

func equalBytes(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
