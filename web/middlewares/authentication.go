package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"

	"wfm-core/model"
	"wfm-core/perm"
	"wfm-core/web/common"
)

const actorKey = "actor"

func parseJwt(tokenStr string, jwtSecret []byte) (*jwt.Token, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		// Ensure the signing method is HMAC (or switch to RSA/ECDSA)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return jwtSecret, nil
	})
	return token, err
}

// Authentication checks for a valid Bearer token and resolves the calling
// user into an Actor with their permission groups loaded.
func Authentication(db *gorm.DB, jwtSecret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		token, err := parseJwt(parts[1], jwtSecret)
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse("invalid or expired token"))
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		username, _ := claims["username"].(string)
		if username == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse("token carries no username"))
			return
		}

		actor, err := resolveActor(db, username)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, common.NewErrorResponse("unknown user"))
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

func resolveActor(db *gorm.DB, username string) (*perm.Actor, error) {
	var user model.User
	if err := db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}

	actor := &perm.Actor{
		User:      user,
		NetworkID: user.NetworkID,
		Networks:  map[int64]*model.Network{},
	}

	if len(user.GroupIDs) > 0 {
		if err := db.Preload("Permissions").Where("id IN ?", []int64(user.GroupIDs)).
			Find(&actor.Groups).Error; err != nil {
			return nil, err
		}
	}

	var networks []model.Network
	if err := db.Find(&networks).Error; err != nil {
		return nil, err
	}
	for i := range networks {
		actor.Networks[networks[i].ID] = &networks[i]
	}

	return actor, nil
}

// Actor pulls the resolved actor back out of the request context.
func Actor(c *gin.Context) *perm.Actor {
	v, ok := c.Get(actorKey)
	if !ok {
		return nil
	}
	actor, _ := v.(*perm.Actor)
	return actor
}
