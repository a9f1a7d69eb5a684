package reviews

import (
	"sort"

	"log/slog"

	"github.com/boxboxhq/boxbox/models"
)

// ReviewNode wraps a review with its nested replies.
type ReviewNode struct {
	models.Review
	Replies []*ReviewNode `json:"replies"`
}

// BuildTree assembles a flat review list into a forest. Top-level reviews
// keep their input order (callers query newest-first); replies at every
// depth are sorted ascending by creation time. A reply whose parent is not
// in the input is dropped from the result.
func BuildTree(flat []models.Review, logger *slog.Logger) []*ReviewNode {
	nodes := make(map[uint]*ReviewNode, len(flat))
	for i := range flat {
		nodes[flat[i].ID] = &ReviewNode{Review: flat[i]}
	}

	var roots []*ReviewNode
	orphans := 0
	for i := range flat {
		node := nodes[flat[i].ID]
		if flat[i].ParentID == nil {
			roots = append(roots, node)
			continue
		}

		parent, ok := nodes[*flat[i].ParentID]
		if !ok {
			orphans++
			continue
		}
		parent.Replies = append(parent.Replies, node)
	}

	if orphans > 0 && logger != nil {
		logger.Debug("Dropped orphaned replies", slog.Int("count", orphans))
	}

	for _, root := range roots {
		sortReplies(root)
	}

	return roots
}

// sortReplies orders a node's replies by ascending creation time,
// recursively.
func sortReplies(node *ReviewNode) {
	sort.SliceStable(node.Replies, func(i, j int) bool {
		return node.Replies[i].CreatedAt.Before(node.Replies[j].CreatedAt)
	})
	for _, reply := range node.Replies {
		sortReplies(reply)
	}
}

// Count returns the total number of nodes in the forest, including nested
// replies.
func Count(forest []*ReviewNode) int {
	total := 0
	for _, node := range forest {
		total += 1 + Count(node.Replies)
	}
	return total
}
