package testutil

// PersonDoc builds a minimal remote account document.
func PersonDoc(id, username string) map[string]any {
	return map[string]any{
		"id":                id,
		"type":              "Person",
		"preferredUsername": username,
		"name":              username,
		"inbox":             id + "/inbox",
		"outbox":            id + "/outbox",
		"followers":         id + "/followers",
		"published":         "2024-03-01T10:00:00Z",
	}
}

// NoteDoc builds a minimal post document.
func NoteDoc(id, author, content string) map[string]any {
	return map[string]any{
		"id":           id,
		"type":         "Note",
		"attributedTo": author,
		"content":      content,
		"published":    "2024-03-02T09:30:00Z",
		"to":           []any{"https://www.w3.org/ns/activitystreams#Public"},
		"cc":           []any{author + "/followers"},
	}
}

// LikeDoc builds a favorite document.
func LikeDoc(id, actor, object string) map[string]any {
	return map[string]any{
		"id":     id,
		"type":   "Like",
		"actor":  actor,
		"object": object,
	}
}

// FollowDoc builds a follow request document.
func FollowDoc(id, actor, object string) map[string]any {
	return map[string]any{
		"id":     id,
		"type":   "Follow",
		"actor":  actor,
		"object": object,
	}
}
