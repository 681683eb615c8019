package policy

// NextReaction is the toggle rule: the same kind again clears the reaction, any other
// kind replaces it. An empty result means no reaction remains.
func NextReaction(current, requested string) string {
	if current == requested {
		return ""
	}
	return requested
}

// ReactionOutcome labels a toggle for metrics.
func ReactionOutcome(previous, next string) string {
	switch {
	case previous == "":
		return "added"
	case next == "":
		return "removed"
	}
	return "switched"
}
