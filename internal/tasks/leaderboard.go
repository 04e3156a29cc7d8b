package tasks

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shinobicompass/bot/internal/models"
)

// Row is one leaderboard line. Delta may be negative; a drop in glory still
// ranks, it just earns a negative reward line.
type Row struct {
	UserID int64
	Name   string
	Start  int64
	End    int64
	Delta  int64
	Reward float64
}

// Leaderboard ranks completed submissions by glory gained, highest first.
// names maps user ids to display names; ids without an entry fall back to
// a numeric label. Ties keep submission order.
func Leaderboard(subs []*models.Submission, names map[int64]string, rewardValue float64) []Row {
	rows := make([]Row, 0, len(subs))
	for _, s := range subs {
		if s.EndValue == nil {
			continue
		}
		name, ok := names[s.UserID]
		if !ok {
			name = fmt.Sprintf("User %d", s.UserID)
		}
		delta := *s.EndValue - s.StartValue
		rows = append(rows, Row{
			UserID: s.UserID,
			Name:   name,
			Start:  s.StartValue,
			End:    *s.EndValue,
			Delta:  delta,
			Reward: float64(delta) * rewardValue,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Delta > rows[j].Delta })
	return rows
}

var medals = []string{"🥇", "🥈", "🥉"}

// RenderResults formats the final leaderboard as HTML for the chat.
func RenderResults(t *models.Task, rows []Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 <b>Task ended:</b> %s\n", t.Description)
	if len(rows) == 0 {
		b.WriteString("\nNobody completed this task.")
		return b.String()
	}
	b.WriteString("\n")
	for i, r := range rows {
		rank := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			rank = medals[i]
		}
		fmt.Fprintf(&b, "%s <b>%s</b> — %+d glory → %s\n",
			rank, r.Name, r.Delta, formatReward(r.Reward, t.RewardUnit))
	}
	return b.String()
}

// formatReward prints the payout in its unit; coins/glory pays coins.
func formatReward(amount float64, unit string) string {
	u := unit
	if u == models.RewardCoinsPerGlory {
		u = "coins"
	}
	return fmt.Sprintf("%s %s", trimFloat(amount), u)
}

// trimFloat drops a trailing ".00" so whole rewards read naturally.
func trimFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
