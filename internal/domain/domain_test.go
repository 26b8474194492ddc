package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommunityKey_ID(t *testing.T) {
	assert.Equal(t, "Global", CommunityKey{Type: CommunityTypeGlobal}.ID())
	assert.Equal(t, "Local_India", CommunityKey{Type: CommunityTypeLocal, Location: "India"}.ID())
	assert.Equal(t, "Local_USA", CommunityKey{Type: CommunityTypeLocal, Location: "USA"}.ID())
}

func TestParseCommunityID(t *testing.T) {
	tests := []struct {
		id   string
		want CommunityKey
	}{
		{"Global", CommunityKey{Type: "Global"}},
		{"Local_India", CommunityKey{Type: "Local", Location: "India"}},
		{"Local_UK", CommunityKey{Type: "Local", Location: "UK"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseCommunityID(tt.id))
	}
}

func TestParseCommunityID_RoundTrip(t *testing.T) {
	for _, id := range []string{"Global", "Local_India", "Local_USA"} {
		assert.Equal(t, id, ParseCommunityID(id).ID())
	}
}

func TestValidChannel(t *testing.T) {
	assert.True(t, ValidChannel("general"))
	assert.True(t, ValidChannel("emergencies"))
	assert.False(t, ValidChannel("random"))
	assert.False(t, ValidChannel(""))
	assert.False(t, ValidChannel("General"))
}

func TestPost_LikeCount(t *testing.T) {
	p := Post{Likes: map[string]bool{"a": true, "b": false, "c": true}}
	assert.Equal(t, 2, p.LikeCount())

	empty := Post{}
	assert.Equal(t, 0, empty.LikeCount())
}

func TestAsError_WrapsUnknown(t *testing.T) {
	err := AsError(assert.AnError)
	assert.Equal(t, KindInternal, err.Kind)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestIsStoreUnavailable(t *testing.T) {
	assert.True(t, IsStoreUnavailable(StoreUnavailableError(assert.AnError)))
	assert.False(t, IsStoreUnavailable(NotFoundError("post", "p1")))
	assert.False(t, IsStoreUnavailable(nil))
}
