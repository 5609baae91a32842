package room

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/classmux/classmux/cmd/classmux/cmdutil"
	"github.com/classmux/classmux/internal/cli/timeutil"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all rooms",
	Long: `List all monitoring rooms.

Examples:
  # List rooms as table
  classmux room list

  # List as JSON
  classmux room list -o json`,
	RunE: runList,
}

// RoomInfo pairs a room with its participant count for display.
type RoomInfo struct {
	RoomID       string    `json:"room_id" yaml:"room_id"`
	Teacher      string    `json:"teacher" yaml:"teacher"`
	Participants int       `json:"participants" yaml:"participants"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

// RoomList renders rooms as table rows.
type RoomList []RoomInfo

func (rl RoomList) Headers() []string {
	return []string{"ROOM", "TEACHER", "PARTICIPANTS", "CREATED"}
}

func (rl RoomList) Rows() [][]string {
	rows := make([][]string, len(rl))
	for i, r := range rl {
		rows[i] = []string{r.RoomID, r.Teacher, strconv.Itoa(r.Participants), timeutil.FormatLocal(r.CreatedAt)}
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	st, err := cmdutil.OpenStore(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := context.Background()

	rooms, err := st.ListRooms(ctx)
	if err != nil {
		return fmt.Errorf("list rooms: %w", err)
	}

	infos := make(RoomList, 0, len(rooms))
	for _, r := range rooms {
		participants, err := st.ListParticipants(ctx, r.RoomID)
		if err != nil {
			return fmt.Errorf("count participants of room '%s': %w", r.RoomID, err)
		}
		infos = append(infos, RoomInfo{
			RoomID:       r.RoomID,
			Teacher:      r.Teacher,
			Participants: len(participants),
			CreatedAt:    r.CreatedAt,
		})
	}

	return cmdutil.PrintOutput(os.Stdout, infos, len(infos) == 0, "No rooms found.", infos)
}
