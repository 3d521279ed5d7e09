package chat

// quickReplies is the static catalog of canned messages offered above the
// input box, keyed by the caller's role.
var quickReplies = map[Role][]string{
	RoleDriver: {
		"I'm on my way.",
		"I have picked up your parcel.",
		"I'm at the drop-off point.",
		"I'll be about 10 minutes late.",
	},
	RoleSender: {
		"Hello! Is this still available?",
		"When can you pick it up?",
		"Please call me when you arrive.",
		"Thank you!",
	},
}

// QuickReplies returns the canned messages for a role. The returned slice
// is a copy; callers may not mutate the catalog. An unknown role yields nil.
func QuickReplies(role Role) []string {
	replies, ok := quickReplies[role]
	if !ok {
		return nil
	}
	out := make([]string, len(replies))
	copy(out, replies)
	return out
}
