package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/j-hartshorn/resonance-sub000/identity"
)

// Encode renders frame into its wire form: one type byte followed by the
// frame's own length-prefixed body. A result larger than MaxDatagramSize
// is rejected with an error.
func Encode(frame Frame) ([]byte, error) {
	body := frame.encodeBody()
	out := make([]byte, 0, 1+len(body))
	out = append(out, byte(frame.Type()))
	out = append(out, body...)
	if len(out) > MaxDatagramSize {
		return nil, fmt.Errorf("wire: encoded frame exceeds %d bytes (%d)", MaxDatagramSize, len(out))
	}
	return out, nil
}

// Decode parses the leading type byte off data and dispatches to the
// matching frame decoder.
func Decode(data []byte) (Frame, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("wire: empty frame")
	}
	t := Type(data[0])
	body := data[1:]

	switch t {
	case TypeHelloInitiate:
		return decodeHello(body, false)
	case TypeHelloAck:
		return decodeHello(body, true)
	case TypeDHPubKey:
		return decodeDHPubKey(body)
	case TypeAuthTag:
		return decodeAuthTag(body)
	case TypeJoinRequest:
		return decodeJoinRequest(body)
	case TypeJoinResponse:
		return decodeJoinResponse(body)
	case TypeEncryptedFrame:
		return decodeEncryptedFrame(body)
	case TypeApplicationMessage:
		return decodeApplicationMessage(body)
	case TypePing:
		return decodePing(body)
	case TypePong:
		return decodePong(body)
	default:
		return nil, errUnknownFrameType
	}
}

// --- fixed-width helpers ---

func putUUID(buf *bytes.Buffer, b []byte) {
	buf.Write(b)
}

func readUUID(r *bytes.Reader) ([16]byte, error) {
	var out [16]byte
	if _, err := io.ReadFull(r, out[:]); err != nil {
		return out, fmt.Errorf("read uuid: %w", err)
	}
	return out, nil
}

// --- variable-length helpers: 32-bit big-endian length prefix
// (spec.md §6: "variable-length fields are length-prefixed with a
// 32-bit unsigned count") ---

func putString(buf *bytes.Buffer, s string) {
	putBytes(buf, []byte(s))
}

func putBytes(buf *bytes.Buffer, b []byte) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	buf.Write(lenBuf[:])
	buf.Write(b)
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read length prefix: %w", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxDatagramSize {
		return nil, fmt.Errorf("read bytes: declared length %d exceeds datagram ceiling", n)
	}
	b := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, fmt.Errorf("read bytes: %w", err)
		}
	}
	return b, nil
}

// --- HelloInitiate / HelloAck ---

func (m HelloInitiate) encodeBody() []byte {
	var buf bytes.Buffer
	var v [2]byte
	binary.BigEndian.PutUint16(v[:], m.Version)
	buf.Write(v[:])
	putUUID(&buf, m.RoomId.Bytes())
	putUUID(&buf, m.PeerId.Bytes())
	return buf.Bytes()
}

func (m HelloAck) encodeBody() []byte {
	return HelloInitiate(m).encodeBody()
}

func decodeHello(body []byte, ack bool) (Frame, error) {
	r := bytes.NewReader(body)
	var v [2]byte
	if _, err := io.ReadFull(r, v[:]); err != nil {
		return nil, fmt.Errorf("decode hello version: %w", err)
	}
	version := binary.BigEndian.Uint16(v[:])

	roomBytes, err := readUUID(r)
	if err != nil {
		return nil, fmt.Errorf("decode hello room id: %w", err)
	}
	roomId := identity.RoomIdFromBytes(roomBytes)

	peerBytes, err := readUUID(r)
	if err != nil {
		return nil, fmt.Errorf("decode hello peer id: %w", err)
	}
	peerId := identity.PeerIdFromBytes(peerBytes)

	if ack {
		return HelloAck{Version: version, RoomId: roomId, PeerId: peerId}, nil
	}
	return HelloInitiate{Version: version, RoomId: roomId, PeerId: peerId}, nil
}

// --- DHPubKey ---

func (m DHPubKey) encodeBody() []byte {
	return append([]byte(nil), m.PubKey[:]...)
}

func decodeDHPubKey(body []byte) (Frame, error) {
	if len(body) != 32 {
		return nil, fmt.Errorf("decode dh pub key: want 32 bytes, got %d", len(body))
	}
	var out DHPubKey
	copy(out.PubKey[:], body)
	return out, nil
}

// --- AuthTagFrame ---

func (m AuthTagFrame) encodeBody() []byte {
	return append([]byte(nil), m.Tag[:]...)
}

func decodeAuthTag(body []byte) (Frame, error) {
	if len(body) != 32 {
		return nil, fmt.Errorf("decode auth tag: want 32 bytes, got %d", len(body))
	}
	var out AuthTagFrame
	copy(out.Tag[:], body)
	return out, nil
}

// --- JoinRequest / JoinResponse ---

func (m JoinRequest) encodeBody() []byte {
	var buf bytes.Buffer
	putUUID(&buf, m.PeerId.Bytes())
	putString(&buf, m.Name)
	return buf.Bytes()
}

func decodeJoinRequest(body []byte) (Frame, error) {
	r := bytes.NewReader(body)
	peerBytes, err := readUUID(r)
	if err != nil {
		return nil, fmt.Errorf("decode join request peer id: %w", err)
	}
	peerId := identity.PeerIdFromBytes(peerBytes)
	name, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("decode join request name: %w", err)
	}
	return JoinRequest{PeerId: peerId, Name: name}, nil
}

func (m JoinResponse) encodeBody() []byte {
	var buf bytes.Buffer
	if m.Approved {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	putString(&buf, m.Reason)
	return buf.Bytes()
}

func decodeJoinResponse(body []byte) (Frame, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("decode join response: empty body")
	}
	r := bytes.NewReader(body[1:])
	reason, err := readString(r)
	if err != nil {
		return nil, fmt.Errorf("decode join response reason: %w", err)
	}
	return JoinResponse{Approved: body[0] != 0, Reason: reason}, nil
}

// --- EncryptedFrame ---

func (m EncryptedFrame) encodeBody() []byte {
	var buf bytes.Buffer
	putBytes(&buf, m.Payload)
	return buf.Bytes()
}

func decodeEncryptedFrame(body []byte) (Frame, error) {
	r := bytes.NewReader(body)
	payload, err := readBytes(r)
	if err != nil {
		return nil, fmt.Errorf("decode encrypted frame: %w", err)
	}
	return EncryptedFrame{Payload: payload}, nil
}

// --- ApplicationMessage ---

func (m ApplicationMessage) encodeBody() []byte {
	var buf bytes.Buffer
	buf.WriteByte(byte(m.Kind))
	switch m.Kind {
	case AppSdpOffer, AppSdpAnswer:
		putString(&buf, m.SDP)
	case AppIceCandidate:
		putString(&buf, m.ICECandidate)
	case AppPeerListRequest:
		// no payload
	case AppPeerListResponse:
		var countBuf [4]byte
		binary.BigEndian.PutUint32(countBuf[:], uint32(len(m.Peers)))
		buf.Write(countBuf[:])
		for _, p := range m.Peers {
			putUUID(&buf, p.PeerId.Bytes())
			putString(&buf, p.Name)
		}
	}
	return buf.Bytes()
}

func decodeApplicationMessage(body []byte) (Frame, error) {
	if len(body) < 1 {
		return nil, fmt.Errorf("decode application message: empty body")
	}
	kind := ApplicationKind(body[0])
	r := bytes.NewReader(body[1:])

	out := ApplicationMessage{Kind: kind}
	switch kind {
	case AppSdpOffer, AppSdpAnswer:
		sdp, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("decode application message sdp: %w", err)
		}
		out.SDP = sdp
	case AppIceCandidate:
		cand, err := readString(r)
		if err != nil {
			return nil, fmt.Errorf("decode application message candidate: %w", err)
		}
		out.ICECandidate = cand
	case AppPeerListRequest:
		// nothing to read
	case AppPeerListResponse:
		var countBuf [4]byte
		if _, err := io.ReadFull(r, countBuf[:]); err != nil {
			return nil, fmt.Errorf("decode peer list count: %w", err)
		}
		count := binary.BigEndian.Uint32(countBuf[:])
		if int64(count) > int64(r.Len()) {
			return nil, fmt.Errorf("decode peer list count: declared %d entries exceeds remaining body", count)
		}
		out.Peers = make([]PeerInfo, 0, count)
		for i := uint32(0); i < count; i++ {
			peerBytes, err := readUUID(r)
			if err != nil {
				return nil, fmt.Errorf("decode peer list entry id: %w", err)
			}
			peerId := identity.PeerIdFromBytes(peerBytes)
			name, err := readString(r)
			if err != nil {
				return nil, fmt.Errorf("decode peer list entry name: %w", err)
			}
			out.Peers = append(out.Peers, PeerInfo{PeerId: peerId, Name: name})
		}
	default:
		return nil, fmt.Errorf("decode application message: unknown kind %d", kind)
	}
	return out, nil
}

// --- Ping / Pong ---

func (m Ping) encodeBody() []byte {
	var buf bytes.Buffer
	putUUID(&buf, m.PeerId.Bytes())
	return buf.Bytes()
}

func decodePing(body []byte) (Frame, error) {
	r := bytes.NewReader(body)
	peerBytes, err := readUUID(r)
	if err != nil {
		return nil, fmt.Errorf("decode ping: %w", err)
	}
	peerId := identity.PeerIdFromBytes(peerBytes)
	return Ping{PeerId: peerId}, nil
}

func (m Pong) encodeBody() []byte {
	var buf bytes.Buffer
	putUUID(&buf, m.PeerId.Bytes())
	return buf.Bytes()
}

func decodePong(body []byte) (Frame, error) {
	r := bytes.NewReader(body)
	peerBytes, err := readUUID(r)
	if err != nil {
		return nil, fmt.Errorf("decode pong: %w", err)
	}
	peerId := identity.PeerIdFromBytes(peerBytes)
	return Pong{PeerId: peerId}, nil
}
