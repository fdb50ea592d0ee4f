package livesync

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/playperu/rallye/internal/rallye"
)

// DisplayTop is how many leading rows the scoreboard shows.
const DisplayTop = 5

type Row struct {
	Key       string
	GroupID   int64
	Name      string
	Points    int
	Rank      int
	Self      bool
	Separator bool
}

// Rank orders scores by points (desc) then name and assigns dense ranks,
// so equal points share a rank. When self has no score row yet a
// synthetic zero-point row is added for it.
func Rank(scores []rallye.GroupScore, names map[int64]string, self string) []Row {
	rows := make([]Row, 0, len(scores)+1)
	foundSelf := false
	for _, s := range scores {
		name, ok := names[s.GroupID]
		if !ok {
			name = fmt.Sprintf("Group %d", s.GroupID)
		}
		isSelf := self != "" && name == self
		foundSelf = foundSelf || isSelf
		rows = append(rows, Row{
			Key:     strconv.FormatInt(s.GroupID, 10),
			GroupID: s.GroupID,
			Name:    name,
			Points:  s.Points,
			Self:    isSelf,
		})
	}
	if self != "" && !foundSelf {
		rows = append(rows, Row{Key: "self-" + self, Name: self, Self: true})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Points != rows[j].Points {
			return rows[i].Points > rows[j].Points
		}
		return rows[i].Name < rows[j].Name
	})

	rank := 0
	for i := range rows {
		if i == 0 || rows[i].Points != rows[i-1].Points {
			rank++
		}
		rows[i].Rank = rank
	}
	return rows
}

// Display trims ranked rows to the top n. If the self row falls outside
// it, a separator and the self row are appended.
func Display(ranked []Row, n int) []Row {
	if len(ranked) <= n {
		return append([]Row(nil), ranked...)
	}
	out := append([]Row(nil), ranked[:n]...)
	for _, r := range out {
		if r.Self {
			return out
		}
	}
	for _, r := range ranked[n:] {
		if r.Self {
			return append(out, Row{Key: "separator", Separator: true}, r)
		}
	}
	return out
}
