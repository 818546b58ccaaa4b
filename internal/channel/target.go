package channel

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/vovakirdan/planroom/internal/proto"
)

// Identity is who joins the room. The server decides what GameMaster allows.
type Identity struct {
	Name       string
	GameMaster bool
}

// Target is the room and participant a channel is bound to.
type Target struct {
	RoomID   proto.RoomID
	Identity Identity
}

// URL returns the channel endpoint for target under the ws/wss base.
func (t Target) URL(base *url.URL) string {
	u := *base
	u.Path = strings.TrimRight(u.Path, "/") + proto.PathWS

	query := url.Values{}
	query.Set("roomId", t.RoomID.String())
	query.Set("name", t.Identity.Name)
	query.Set("gamemaster", strconv.FormatBool(t.Identity.GameMaster))
	u.RawQuery = query.Encode()

	return u.String()
}
