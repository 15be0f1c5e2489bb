package competitionmanager

import (
	"sort"
	"time"

	"github.com/yourusername/competition-api/internal/domain/entity"
)

// ComputeLeaderboard turns the participant list into an ordered, ranked
// leaderboard. Ordering is score descending, ties broken by earliest join
// time, then by user id ascending, so the result is a total order and
// recomputes are reproducible. Each participant's Rank field is updated in
// place; the entry Delta is previousRank - newRank (positive means the
// participant moved up). Participants that never held a rank get a zero
// delta so a first compute reads as "no movement".
//
// The function is pure with respect to everything except the Rank fields of
// the given slice: it has no storage access, and invoking it twice with
// unchanged scores yields identical ranks and all-zero deltas on the second
// call.
func ComputeLeaderboard(competitionID uint, participants []entity.Participant, now time.Time) []entity.LeaderboardEntry {
	if len(participants) == 0 {
		return []entity.LeaderboardEntry{}
	}

	order := make([]*entity.Participant, len(participants))
	for i := range participants {
		order[i] = &participants[i]
	}

	sort.SliceStable(order, func(i, j int) bool {
		if order[i].Score != order[j].Score {
			return order[i].Score > order[j].Score
		}
		if !order[i].JoinedAt.Equal(order[j].JoinedAt) {
			return order[i].JoinedAt.Before(order[j].JoinedAt)
		}
		return order[i].UserID < order[j].UserID
	})

	entries := make([]entity.LeaderboardEntry, 0, len(order))
	for i, p := range order {
		rank := i + 1
		delta := 0
		if p.Rank > 0 {
			delta = p.Rank - rank
		}
		p.Rank = rank

		entries = append(entries, entity.LeaderboardEntry{
			CompetitionID: competitionID,
			UserID:        p.UserID,
			TeamID:        p.TeamID,
			Score:         p.Score,
			Rank:          rank,
			Delta:         delta,
			ComputedAt:    now,
		})
	}
	return entries
}
