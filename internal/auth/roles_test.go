package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"aimarket/internal/models"
)

func TestCapabilities(t *testing.T) {
	assert.Contains(t, Capabilities(models.RoleCustomer), CapChat)
	assert.Contains(t, Capabilities(models.RoleStore), CapPublishListings)
	assert.Contains(t, Capabilities(models.RoleAdmin), CapManageUsers)
	assert.NotContains(t, Capabilities(models.RoleCustomer), CapManageUsers)
	assert.Nil(t, Capabilities("unknown"))
}

func TestCapabilities_ReturnsCopy(t *testing.T) {
	caps := Capabilities(models.RoleStore)
	caps[0] = "mutated"
	assert.NotContains(t, Capabilities(models.RoleStore), "mutated")
}

func TestHasCapability(t *testing.T) {
	assert.True(t, HasCapability(models.RoleStore, CapManageOwnStock))
	assert.False(t, HasCapability(models.RoleCustomer, CapPublishListings))
	assert.False(t, HasCapability("unknown", CapChat))
}
