package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/j-hartshorn/resonance-sub000/config"
	"github.com/j-hartshorn/resonance-sub000/identity"
	"github.com/j-hartshorn/resonance-sub000/internal/logger"
	"github.com/j-hartshorn/resonance-sub000/room"
)

// roster mirrors room.State as seen from outside the Handler's single
// goroutine, built entirely from the RoomEvent stream — a CLI client has
// no other way to observe room membership, the same constraint a GUI
// frontend would have.
type roster struct {
	members map[identity.PeerId]string
	pending map[identity.PeerId]string
}

func newRoster() *roster {
	return &roster{
		members: make(map[identity.PeerId]string),
		pending: make(map[identity.PeerId]string),
	}
}

func (r *roster) apply(ev room.RoomEvent) {
	switch ev.Kind {
	case room.EventPeerAdded:
		r.members[ev.PeerId] = ev.Name
		delete(r.pending, ev.PeerId)
	case room.EventPeerRemoved:
		delete(r.members, ev.PeerId)
	case room.EventPeerRenamed:
		r.members[ev.PeerId] = ev.Name
	case room.EventJoinRequestReceived:
		r.pending[ev.PeerId] = ev.Name
	case room.EventJoinRequestStatusChanged:
		if name, ok := r.pending[ev.PeerId]; ok && ev.Status == room.StatusApproved {
			r.members[ev.PeerId] = name
		}
		delete(r.pending, ev.PeerId)
	}
}

// loadConfig loads the persisted configuration document, writing defaults
// on first run, as spec.md §6 requires.
func loadConfig() (*config.Config, error) {
	path, err := config.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	cfg, err := config.Load(config.LoaderOptions{Path: path})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.EnsureSaved(cfg, path); err != nil {
		logger.Warn("failed to persist default config", logger.String("path", path), logger.Error(err))
	}
	return cfg, nil
}

// runSession prints RoomEvents as they arrive and drives a line-oriented
// command prompt (approve/deny/rename/leave/status/quit) against h,
// folding every observed event into a local roster. It blocks until the
// user quits. onSelfJoined, if non-nil, fires once when this node's own
// EventPeerAdded arrives — the first point at which h.LocalAddr/h.RoomID
// are safe to read (bootstrap has completed).
func runSession(h *room.Handler, onSelfJoined func()) {
	r := newRoster()
	done := make(chan struct{})

	go func() {
		defer close(done)
		selfJoined := false
		for ev := range h.Events() {
			r.apply(ev)
			printEvent(ev)
			if !selfJoined && ev.Kind == room.EventPeerAdded && ev.PeerId == h.SelfID() {
				selfJoined = true
				if onSelfJoined != nil {
					onSelfJoined()
				}
			}
		}
	}()

	fmt.Println("Type 'help' for available commands.")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !dispatchLine(h, r, line) {
			break
		}
	}

	_ = h.Submit(room.RoomCommand{Kind: room.CmdShutdown})
	<-done
}

func dispatchLine(h *room.Handler, r *roster, line string) bool {
	fields := strings.Fields(line)
	switch fields[0] {
	case "help":
		printHelp()
	case "status":
		printStatus(h, r)
	case "approve":
		if len(fields) < 2 {
			fmt.Println("usage: approve <peer-short-id>")
			break
		}
		approveByShortID(h, r, fields[1])
	case "deny":
		if len(fields) < 2 {
			fmt.Println("usage: deny <peer-short-id> [reason]")
			break
		}
		denyByShortID(h, r, fields[1], strings.Join(fields[2:], " "))
	case "rename":
		if len(fields) < 3 {
			fmt.Println("usage: rename <peer-short-id> <name>")
			break
		}
		renameByShortID(h, r, fields[1], strings.Join(fields[2:], " "))
	case "leave", "quit", "exit":
		_ = h.Submit(room.RoomCommand{Kind: room.CmdLeaveRoom})
		return false
	default:
		fmt.Printf("unknown command: %s (type 'help')\n", fields[0])
	}
	return true
}

func printHelp() {
	fmt.Println(`commands:
  status                     show current members and pending requests
  approve <peer-short-id>    admit a pending peer
  deny <peer-short-id> [reason]
  rename <peer-short-id> <name>
  leave                      leave the room and exit`)
}

func printStatus(h *room.Handler, r *roster) {
	fmt.Printf("self: %s\n", h.SelfID().Short())
	fmt.Println("members:")
	for id, name := range r.members {
		fmt.Printf("  %s  %s\n", id.Short(), name)
	}
	fmt.Println("pending join requests:")
	for id, name := range r.pending {
		fmt.Printf("  %s  %s\n", id.Short(), name)
	}
}

func findByShortID(ids map[identity.PeerId]string, short string) (identity.PeerId, bool) {
	for id := range ids {
		if id.Short() == short {
			return id, true
		}
	}
	return identity.PeerId{}, false
}

func approveByShortID(h *room.Handler, r *roster, short string) {
	id, ok := findByShortID(r.pending, short)
	if !ok {
		fmt.Printf("no pending request from %s\n", short)
		return
	}
	_ = h.Submit(room.RoomCommand{Kind: room.CmdApproveJoinRequest, PeerId: id})
}

func denyByShortID(h *room.Handler, r *roster, short, reason string) {
	id, ok := findByShortID(r.pending, short)
	if !ok {
		fmt.Printf("no pending request from %s\n", short)
		return
	}
	_ = h.Submit(room.RoomCommand{Kind: room.CmdDenyJoinRequest, PeerId: id, Reason: reason})
}

func renameByShortID(h *room.Handler, r *roster, short, name string) {
	id, ok := findByShortID(r.members, short)
	if !ok {
		fmt.Printf("no member %s\n", short)
		return
	}
	_ = h.Submit(room.RoomCommand{Kind: room.CmdRenamePeer, PeerId: id, Name: name})
}

func printEvent(ev room.RoomEvent) {
	switch ev.Kind {
	case room.EventPeerAdded:
		fmt.Printf("[peer added] %s %s\n", ev.PeerId.Short(), ev.Name)
	case room.EventPeerRemoved:
		fmt.Printf("[peer left] %s\n", ev.PeerId.Short())
	case room.EventPeerRenamed:
		fmt.Printf("[peer renamed] %s -> %s\n", ev.PeerId.Short(), ev.Name)
	case room.EventJoinRequestReceived:
		fmt.Printf("[join request] %s %s (addr %s) — 'approve %s' or 'deny %s'\n",
			ev.PeerId.Short(), ev.Name, ev.Addr, ev.PeerId.Short(), ev.PeerId.Short())
	case room.EventJoinRequestStatusChanged:
		status := "denied"
		if ev.Status == room.StatusApproved {
			status = "approved"
		}
		fmt.Printf("[join %s] %s %s\n", status, ev.PeerId.Short(), ev.Reason)
	case room.EventError:
		fmt.Printf("[error] kind=%v peer=%s %s\n", ev.ErrKind, ev.PeerId.Short(), ev.Reason)
	}
}
