package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/planroom/internal/channel"
	"github.com/vovakirdan/planroom/internal/proto"
)

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "planroom",
		Short:         "Planning poker room client",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config.yaml")
	root.PersistentFlags().StringVar(&flags.server, "server", "", "planning server base URL (http or https)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error, off)")

	root.AddCommand(
		newCreateCmd(flags),
		newDestroyCmd(flags),
		newJoinCmd(flags),
		newRoomsCmd(flags),
		newHealthCmd(flags),
	)
	return root
}

func newCreateCmd(flags *globalFlags) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a room from newline-separated ticket ids (stdin or --file)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readTickets(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			a, _, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			room, err := a.Session().Create(cmd.Context(), raw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), room.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read ticket ids from file instead of stdin")
	return cmd
}

func newDestroyCmd(flags *globalFlags) *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "destroy ROOM_ID",
		Short: "Destroy a room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Session().Destroy(cmd.Context(), proto.RoomID(args[0]), name); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "room %s destroyed\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "display name of the requester")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newJoinCmd(flags *globalFlags) *cobra.Command {
	var identity channel.Identity

	cmd := &cobra.Command{
		Use:   "join ROOM_ID",
		Short: "Join a room and print every state change until interrupted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, logger, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			logger.Info().Str("room_id", args[0]).Str("name", identity.Name).Msg("watching room")
			return a.Watch(cmd.Context(), proto.RoomID(args[0]), identity, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&identity.Name, "name", "n", "", "display name in the room")
	cmd.Flags().BoolVar(&identity.GameMaster, "gamemaster", false, "join as game master")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func newRoomsCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "rooms",
		Short: "List rooms created from this machine",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			rooms, err := a.Session().Rooms(cmd.Context())
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ROOM\tTICKETS\tCREATED\tSTATUS")
			for _, room := range rooms {
				status := "active"
				if !room.Active() {
					status = "destroyed " + room.DestroyedAt.Local().Format(time.DateTime)
				}
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", room.ID, len(room.Tickets), room.CreatedAt.Local().Format(time.DateTime), status)
			}
			return tw.Flush()
		},
	}
}

func newHealthCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the planning server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Health(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func readTickets(stdin io.Reader, file string) (string, error) {
	var (
		data []byte
		err  error
	)
	if file != "" {
		data, err = os.ReadFile(file)
	} else {
		data, err = io.ReadAll(stdin)
	}
	if err != nil {
		return "", fmt.Errorf("read tickets: %w", err)
	}
	return string(data), nil
}
