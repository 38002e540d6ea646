//go:build !race

package coachgate

func passwordHashCost() int {
	return 14
}
