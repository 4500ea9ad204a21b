package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	id := Classify("3fa85f64-5717-4562-b3fc-2c963f66afa6")
	assert.Equal(t, KindAuthenticatedUser, id.Kind)
	assert.Equal(t, "3fa85f64-5717-4562-b3fc-2c963f66afa6", id.UserID)

	assert.Equal(t, KindGuestFamily, Classify("A4_Natascha").Kind)
	assert.Equal(t, KindGuestFamily, Classify("walkin_12").Kind)
	// braced and urn forms are not account keys
	assert.Equal(t, KindGuestFamily, Classify("{3fa85f64-5717-4562-b3fc-2c963f66afa6}").Kind)
}

func TestCanonicalStayID(t *testing.T) {
	assert.Equal(t, "a5_crowley", CanonicalStayID("A5_CROWLEY"))
	assert.Equal(t, "a5_crowley", CanonicalStayID("a5 - crowley"))
	assert.Equal(t, "a5_crowley", CanonicalStayID("A5__Crowley"))
}

func TestGuestDisplayName(t *testing.T) {
	assert.Equal(t, "A5 CROWLEY", GuestDisplayName("A5_CROWLEY", "", nil))
	assert.Equal(t, "Walkin 12", GuestDisplayName("walkin_12", "", nil))
	assert.Equal(t, "Walkin 12 (Ana)", GuestDisplayName("walkin_12", "Ana", nil))
	assert.Equal(t, "Walkin", GuestDisplayName("walkin", "", nil))

	table := 7
	assert.Equal(t, "Walkin 7", GuestDisplayName("walkin", "", &table))
	// digits in the id win over the supplied table number
	assert.Equal(t, "Walkin 12", GuestDisplayName("walkin_12", "", &table))
}

func TestGuestDisplayNameNeverEmpty(t *testing.T) {
	assert.NotEmpty(t, GuestDisplayName("???", "", nil))
	assert.NotEmpty(t, GuestDisplayName("_", "", nil))
	assert.NotEmpty(t, GuestDisplayName("x", "", nil))
}

func TestAccountDisplayName(t *testing.T) {
	assert.Equal(t, "Maria", AccountDisplayName("Maria", "maria@example.com", "uid"))
	assert.Equal(t, "maria", AccountDisplayName("", "maria@example.com", "uid"))
	assert.Equal(t, "uid", AccountDisplayName("", "", "uid"))
}
