package membership

import "github.com/huangang/projecthub/internal/models"

var ranks = map[models.Role]int{
	models.RoleOwner: 4,
	models.RoleAdmin: 3,
	models.RoleWrite: 2,
	models.RoleRead:  1,
}

// Rank returns the privilege level of r. Unknown roles rank 0.
func Rank(r models.Role) int {
	return ranks[r]
}

// Meets reports whether actual grants at least the privileges of required.
// An unknown role on either side never meets.
func Meets(actual, required models.Role) bool {
	a, r := Rank(actual), Rank(required)
	if a == 0 || r == 0 {
		return false
	}
	return a >= r
}
