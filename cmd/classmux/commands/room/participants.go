package room

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/classmux/classmux/cmd/classmux/cmdutil"
	"github.com/classmux/classmux/internal/cli/timeutil"
	"github.com/classmux/classmux/pkg/store"
)

var participantsCmd = &cobra.Command{
	Use:   "participants <room-id>",
	Short: "List participants of a room",
	Long: `List the students currently joined to a room.

Examples:
  # List participants as table
  classmux room participants lab-1

  # List as JSON
  classmux room participants lab-1 -o json`,
	Args: cobra.ExactArgs(1),
	RunE: runParticipants,
}

// ParticipantList renders room participants as table rows.
type ParticipantList []*store.RoomParticipant

func (pl ParticipantList) Headers() []string {
	return []string{"USERNAME", "NAME", "MSSV", "JOINED"}
}

func (pl ParticipantList) Rows() [][]string {
	rows := make([][]string, len(pl))
	for i, p := range pl {
		rows[i] = []string{p.StudentUsername, p.StudentName, p.MSSV, timeutil.FormatAgo(p.JoinedAt)}
	}
	return rows
}

func runParticipants(cmd *cobra.Command, args []string) error {
	roomID := args[0]

	st, err := cmdutil.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()

	// Existence check so an empty room and a missing room read differently.
	if _, err := st.GetRoom(ctx, roomID); err != nil {
		return fmt.Errorf("get room: %w", err)
	}

	participants, err := st.ListParticipants(ctx, roomID)
	if err != nil {
		return fmt.Errorf("list participants: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, participants, len(participants) == 0,
		fmt.Sprintf("No participants in room '%s'.", roomID), ParticipantList(participants))
}
