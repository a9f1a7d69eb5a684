package reviews

import (
	"io"
	"testing"
	"time"

	"log/slog"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/boxboxhq/boxbox/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func review(id uint, parentID *uint, createdAt time.Time) models.Review {
	return models.Review{
		Model:    gorm.Model{ID: id, CreatedAt: createdAt},
		RaceID:   1,
		UserID:   "u1",
		Body:     "body",
		ParentID: parentID,
	}
}

func ptr(v uint) *uint { return &v }

func TestBuildTree_Empty(t *testing.T) {
	forest := BuildTree(nil, testLogger())
	assert.Empty(t, forest)
}

func TestBuildTree_TopLevelKeepInputOrder(t *testing.T) {
	base := time.Date(2024, 5, 26, 15, 0, 0, 0, time.UTC)

	// Callers pass newest-first; the builder must not reorder roots.
	flat := []models.Review{
		review(3, nil, base.Add(2*time.Hour)),
		review(2, nil, base.Add(time.Hour)),
		review(1, nil, base),
	}

	forest := BuildTree(flat, testLogger())
	require.Len(t, forest, 3)
	assert.Equal(t, uint(3), forest[0].ID)
	assert.Equal(t, uint(2), forest[1].ID)
	assert.Equal(t, uint(1), forest[2].ID)
}

func TestBuildTree_NestsAndSortsReplies(t *testing.T) {
	base := time.Date(2024, 5, 26, 15, 0, 0, 0, time.UTC)

	flat := []models.Review{
		review(1, nil, base),
		review(4, ptr(1), base.Add(3*time.Hour)),
		review(2, ptr(1), base.Add(time.Hour)),
		review(3, ptr(2), base.Add(2*time.Hour)),
		review(5, ptr(2), base.Add(90*time.Minute)),
	}

	forest := BuildTree(flat, testLogger())
	require.Len(t, forest, 1)

	// Node count including descendants equals the input length.
	assert.Equal(t, len(flat), Count(forest))

	root := forest[0]
	require.Len(t, root.Replies, 2)
	assert.Equal(t, uint(2), root.Replies[0].ID)
	assert.Equal(t, uint(4), root.Replies[1].ID)

	nested := root.Replies[0]
	require.Len(t, nested.Replies, 2)
	assert.Equal(t, uint(5), nested.Replies[0].ID)
	assert.Equal(t, uint(3), nested.Replies[1].ID)

	assertSorted(t, forest)
}

func TestBuildTree_OrphanReplyDropped(t *testing.T) {
	base := time.Date(2024, 5, 26, 15, 0, 0, 0, time.UTC)

	flat := []models.Review{
		review(1, nil, base),
		review(2, ptr(99), base.Add(time.Hour)), // parent not in input
	}

	forest := BuildTree(flat, testLogger())
	require.Len(t, forest, 1)
	assert.Equal(t, uint(1), forest[0].ID)

	// The orphan appears nowhere, neither top-level nor nested.
	assert.Equal(t, 1, Count(forest))
}

func TestBuildTree_OrphanSubtreeDropped(t *testing.T) {
	base := time.Date(2024, 5, 26, 15, 0, 0, 0, time.UTC)

	// A reply chained under an orphan is dropped with it.
	flat := []models.Review{
		review(1, nil, base),
		review(2, ptr(42), base.Add(time.Hour)),
		review(3, ptr(2), base.Add(2*time.Hour)),
	}

	forest := BuildTree(flat, testLogger())
	require.Len(t, forest, 1)
	assert.Equal(t, 1, Count(forest))
}

func TestBuildTree_NilLogger(t *testing.T) {
	flat := []models.Review{
		review(1, ptr(9), time.Now()),
	}

	assert.NotPanics(t, func() {
		BuildTree(flat, nil)
	})
}

// assertSorted walks the forest checking that every replies list is in
// non-decreasing creation time order.
func assertSorted(t *testing.T, forest []*ReviewNode) {
	t.Helper()
	for _, node := range forest {
		for i := 1; i < len(node.Replies); i++ {
			assert.False(t, node.Replies[i].CreatedAt.Before(node.Replies[i-1].CreatedAt),
				"replies of %d out of order", node.ID)
		}
		assertSorted(t, node.Replies)
	}
}
