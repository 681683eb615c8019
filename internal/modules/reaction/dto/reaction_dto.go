package dto

type ReactionInput struct {
	Kind string `json:"kind" binding:"required,reaction_kind"`
}

type ReactionResult struct {
	Likes        int64   `json:"likes"`
	Dislikes     int64   `json:"dislikes"`
	UserReaction *string `json:"user_reaction"`
}
