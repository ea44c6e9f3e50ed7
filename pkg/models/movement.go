package models

// Movement labels reported by the classifier table.
const (
	MovementWalking       = "Walking"
	MovementJogging       = "Jogging"
	MovementRunning       = "Running"
	MovementSitting       = "Sitting"
	MovementStanding      = "Standing"
	MovementStairClimbing = "Stair Climbing"
	MovementUnknown       = "Unknown Movement"
)

// movementLabels is the fixed category id to label table.
var movementLabels = map[int]string{
	1: MovementWalking,
	2: MovementJogging,
	3: MovementRunning,
	4: MovementSitting,
	5: MovementStanding,
	6: MovementStairClimbing,
}

// CategoryCount is the number of known movement categories.
const CategoryCount = 6

// MovementLabel resolves a classifier category id to its label.
// Unmapped ids resolve to MovementUnknown.
func MovementLabel(category int) string {
	if label, ok := movementLabels[category]; ok {
		return label
	}
	return MovementUnknown
}

// Categories returns the known category ids in ascending order.
func Categories() []int {
	return []int{1, 2, 3, 4, 5, 6}
}
