package game

import (
	"fmt"
	"math/rand"
)

// Role is a player's secret role.
type Role string

const (
	RoleMafia    Role = "Mafia"
	RoleDoctor   Role = "Doctor"
	RoleCop      Role = "Cop"
	RoleVillager Role = "Villager"
)

const (
	MinPlayers = 4
	MaxPlayers = 16

	// specialRoleThreshold is the player count at which the Doctor and the Cop
	// enter the game.
	specialRoleThreshold = 6
)

// personalities are assigned round-robin by agent id so any roster mixes all
// three temperaments.
var personalities = [3]string{
	"You are aggressive and confrontational. You accuse quickly and push the group toward action.",
	"You are cautious and quiet. You speak briefly and avoid drawing attention to yourself.",
	"You are analytical. You weigh voting patterns and inconsistencies before pointing fingers.",
}

func personalityFor(agentID int) string {
	return personalities[agentID%3]
}

// AssignRoles builds the role multiset for n players and shuffles it with rng.
// Mafia count is n/4, at least one, and always short of half the table so the
// village starts with a majority. The Doctor and the Cop appear once each in
// games of specialRoleThreshold players or more; everyone else is a Villager.
func AssignRoles(n int, rng *rand.Rand) ([]Role, error) {
	if n < MinPlayers || n > MaxPlayers {
		return nil, fmt.Errorf("%w: player count %d must be between %d and %d", ErrConfiguration, n, MinPlayers, MaxPlayers)
	}

	numMafia := n / 4
	if numMafia < 1 {
		numMafia = 1
	}
	for numMafia*2 >= n {
		numMafia--
	}

	roles := make([]Role, 0, n)
	for i := 0; i < numMafia; i++ {
		roles = append(roles, RoleMafia)
	}
	if n >= specialRoleThreshold {
		roles = append(roles, RoleDoctor, RoleCop)
	}
	for len(roles) < n {
		roles = append(roles, RoleVillager)
	}

	rng.Shuffle(len(roles), func(i, j int) {
		roles[i], roles[j] = roles[j], roles[i]
	})
	return roles, nil
}
