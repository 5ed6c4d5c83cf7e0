package logic

// Resolve maps a key snapshot to the position that triggered it.
//
// The snapshot is scanned in declared order (right, center, left) and the
// first active line wins, so simultaneous presses resolve to the
// lowest-ordered position. An all-inactive or empty snapshot resolves to
// PositionNone. Values beyond the third are ignored.
func Resolve(snapshot []bool) Position {
	for i, active := range snapshot {
		if i >= NumPositions {
			break
		}
		if active {
			return Positions[i]
		}
	}
	return PositionNone
}
