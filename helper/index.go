package helper

import (
	"errors"
	"fmt"
	"time"

	"restaurant_order/constants"
	"restaurant_order/model"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidClaims = errors.New("token is missing staff claims")

func GenerateStaffToken(claim model.StaffClaim, secret string, ttl time.Duration) (string, error) {
	token := jwt.New(jwt.SigningMethodHS256)

	claims := token.Claims.(jwt.MapClaims)
	claims["username"] = claim.Username
	claims["accountId"] = claim.AccountId
	claims["restaurantId"] = claim.RestaurantId
	claims["role"] = claim.Role
	claims["exp"] = time.Now().Add(ttl).Unix()

	return token.SignedString([]byte(secret))
}

// ParseStaffToken verifies an HS256 staff token and extracts its claims.
func ParseStaffToken(tokenString, secret string) (model.StaffClaim, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return model.StaffClaim{}, err
	}
	if !token.Valid {
		return model.StaffClaim{}, jwt.ErrTokenInvalidClaims
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return model.StaffClaim{}, ErrInvalidClaims
	}
	restaurantID, _ := claims["restaurantId"].(string)
	accountID, _ := claims["accountId"].(float64)
	if restaurantID == "" || accountID == 0 {
		return model.StaffClaim{}, ErrInvalidClaims
	}
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)

	return model.StaffClaim{
		AccountId:    uint(accountID),
		Username:     username,
		RestaurantId: restaurantID,
		Role:         role,
	}, nil
}

// GetStaffFromCtx returns the claims stored by the staff auth middleware.
func GetStaffFromCtx(c *fiber.Ctx) (model.StaffClaim, bool) {
	claim, ok := c.Locals(constants.LOCAL_STAFF).(model.StaffClaim)
	return claim, ok
}

func GetSessionFromCtx(c *fiber.Ctx) (*model.CustomerSession, bool) {
	session, ok := c.Locals(constants.LOCAL_SESSION).(*model.CustomerSession)
	return session, ok && session != nil
}
