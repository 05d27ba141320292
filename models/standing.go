package models

// GroupStanding is a derived aggregate, recomputed from the completed-match
// set on every read. It is never persisted: the table must always equal a
// pure function of the completed group matches.
type GroupStanding struct {
	TeamID       int    `json:"team_id"`
	TeamName     string `json:"team_name"`
	GroupName    string `json:"group_name"`
	Played       int    `json:"played"`
	Won          int    `json:"won"`
	Drawn        int    `json:"drawn"`
	Lost         int    `json:"lost"`
	GoalsFor     int    `json:"goals_for"`
	GoalsAgainst int    `json:"goals_against"`
	Points       int    `json:"points"`
}

func (s *GroupStanding) GoalDifference() int {
	return s.GoalsFor - s.GoalsAgainst
}
