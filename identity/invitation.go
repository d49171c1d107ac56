package identity

import (
	"fmt"
	"net"
	"strings"
)

// Invitation is the shareable, textual out-of-band link a host hands to a
// prospective joiner: "room:<room_id_uuid>@<host>:<port>".
type Invitation struct {
	RoomId  RoomId
	Address string // host:port, as parsed (IPv6 hosts keep their bracket form)
}

const invitationPrefix = "room:"

// String renders the invitation back into its canonical textual form.
func (inv Invitation) String() string {
	return fmt.Sprintf("%s%s@%s", invitationPrefix, inv.RoomId.String(), inv.Address)
}

// ParseInvitation parses a "room:<uuid>@<host>:<port>" link. Any deviation
// from that grammar is reported as identity.KindOther ("InvalidInvitation"
// per spec §6/§8).
func ParseInvitation(link string) (Invitation, error) {
	if !strings.HasPrefix(link, invitationPrefix) {
		return Invitation{}, invalidInvitation("missing 'room:' prefix")
	}
	rest := strings.TrimPrefix(link, invitationPrefix)

	at := strings.Index(rest, "@")
	if at < 0 || strings.Count(rest, "@") != 1 {
		return Invitation{}, invalidInvitation("expected exactly one '@'")
	}

	roomPart, addrPart := rest[:at], rest[at+1:]

	roomId, err := ParseRoomId(roomPart)
	if err != nil {
		return Invitation{}, invalidInvitation("malformed room UUID")
	}

	host, port, err := net.SplitHostPort(addrPart)
	if err != nil || host == "" || port == "" {
		return Invitation{}, invalidInvitation("malformed host:port")
	}

	return Invitation{RoomId: roomId, Address: net.JoinHostPort(host, port)}, nil
}

func invalidInvitation(reason string) error {
	return NewError(KindOther, fmt.Sprintf("InvalidInvitation: %s", reason))
}
