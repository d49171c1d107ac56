package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/j-hartshorn/resonance-sub000/identity"
	"github.com/j-hartshorn/resonance-sub000/room"
)

var joinCmd = &cobra.Command{
	Use:   "join <invitation-link>",
	Short: "Join a room from an invitation link",
	Args:  cobra.ExactArgs(1),
	RunE:  runJoin,
}

func init() {
	rootCmd.AddCommand(joinCmd)
}

func runJoin(cmd *cobra.Command, args []string) error {
	inv, err := identity.ParseInvitation(args[0])
	if err != nil {
		return fmt.Errorf("parse invitation: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	h := room.NewHandler(room.Config{Username: cfg.Username, ICEServers: cfg.ICEServers})
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go h.Run(ctx)

	joinReq := room.RoomCommand{Kind: room.CmdJoinRoom, RoomId: inv.RoomId, Address: inv.Address}
	if err := h.Submit(joinReq); err != nil {
		return fmt.Errorf("join room: %w", err)
	}

	fmt.Printf("requesting to join room %s at %s...\n", inv.RoomId, inv.Address)
	runSession(h, func() {
		fmt.Println("admitted to the room.")
	})
	return nil
}
