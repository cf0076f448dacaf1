package roleform

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/listadmin/internal/model"
)

func TestValidateAddress(t *testing.T) {
	assert.NoError(t, validateAddress(" mod@example.com "))
	assert.Error(t, validateAddress(""))
	assert.Error(t, validateAddress("not an address"))
}

func TestStartNeedsOwnedList(t *testing.T) {
	lists := []model.MailingList{
		{ListID: "dev.example.com", Owners: []string{"owner@example.com"}, Moderators: []string{"mod@example.com"}},
	}

	m := New(80, 24)
	assert.Nil(t, m.Start(lists, model.User{Email: "mod@example.com"}))
	assert.False(t, m.Active())

	m.Start(lists, model.User{Email: "owner@example.com"})
	assert.True(t, m.Active())
	assert.Equal(t, "dev.example.com", m.fb.listID)
	assert.Equal(t, model.RoleModerator, m.fb.role)

	m = New(80, 24)
	m.Start(lists, model.User{Email: "root@example.com", Superuser: true})
	assert.True(t, m.Active())
}
