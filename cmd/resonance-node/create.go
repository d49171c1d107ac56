package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/j-hartshorn/resonance-sub000/identity"
	"github.com/j-hartshorn/resonance-sub000/room"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new room and wait for peers to join",
	RunE:  runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	h := room.NewHandler(room.Config{Username: cfg.Username, ICEServers: cfg.ICEServers})
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go h.Run(ctx)

	if err := h.Submit(room.RoomCommand{Kind: room.CmdCreateRoom}); err != nil {
		return fmt.Errorf("create room: %w", err)
	}

	runSession(h, func() {
		addr := h.DiscoverPublicAddr(cfg.STUNServers)
		inv := identity.Invitation{RoomId: h.RoomID(), Address: addr.String()}
		fmt.Printf("room created. invitation link:\n  %s\n", inv.String())
	})
	return nil
}
