package helper

import (
	"testing"
	"time"

	"restaurant_order/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "kitchen-secret"

func TestStaffTokenRoundTrip(t *testing.T) {
	claim := model.StaffClaim{AccountId: 42, Username: "chef", RestaurantId: "rest-1", Role: "KITCHEN"}

	token, err := GenerateStaffToken(claim, testSecret, time.Hour)
	require.NoError(t, err)

	got, err := ParseStaffToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, claim, got)
}

func TestParseStaffTokenRejects(t *testing.T) {
	claim := model.StaffClaim{AccountId: 42, RestaurantId: "rest-1"}

	wrongKey, err := GenerateStaffToken(claim, "other-secret", time.Hour)
	require.NoError(t, err)
	_, err = ParseStaffToken(wrongKey, testSecret)
	assert.Error(t, err)

	expired, err := GenerateStaffToken(claim, testSecret, -time.Minute)
	require.NoError(t, err)
	_, err = ParseStaffToken(expired, testSecret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	noRestaurant, err := GenerateStaffToken(model.StaffClaim{AccountId: 42}, testSecret, time.Hour)
	require.NoError(t, err)
	_, err = ParseStaffToken(noRestaurant, testSecret)
	assert.ErrorIs(t, err, ErrInvalidClaims)

	_, err = ParseStaffToken("not-a-jwt", testSecret)
	assert.Error(t, err)
}

func TestQRFileName(t *testing.T) {
	assert.Equal(t, "table-7-a7f2.png", QRFileName(7, "A7F2"))
}
