package room

import "github.com/j-hartshorn/resonance-sub000/identity"

// CommandKind discriminates a RoomCommand sent from the UI.
type CommandKind int

const (
	CmdCreateRoom CommandKind = iota + 1
	CmdJoinRoom
	CmdApproveJoinRequest
	CmdDenyJoinRequest
	CmdRenamePeer
	CmdLeaveRoom
	CmdShutdown
)

// RoomCommand is one instruction from the UI to the Handler's command
// channel.
type RoomCommand struct {
	Kind CommandKind

	RoomId  identity.RoomId // JoinRoom
	Address string          // JoinRoom: "host:port" of the room's bootstrap host

	PeerId identity.PeerId // ApproveJoinRequest, DenyJoinRequest, RenamePeer
	Reason string          // DenyJoinRequest
	Name   string          // RenamePeer
}
