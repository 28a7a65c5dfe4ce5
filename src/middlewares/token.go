package middlewares

import (
	"context"
	"errors"
	"fmt"
	"lms/src/lib"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// VerifyIdToken checks the caller's identity-provider token. Used on the
// register/login routes before a session JWT exists.
func VerifyIdToken(ctx *gin.Context) {
	idToken := ctx.GetHeader("Authorization")
	if idToken == "" {
		err := errors.New("missing authorization header")
		log.Printf("Check failed: %s\n", err.Error())
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	fauth, err := lib.GetFirebaseAuth()
	if err != nil {
		log.Printf("Error retrieving Firebase Auth instance: %s\n", err.Error())
		ctx.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	token, err := fauth.VerifyIDToken(ctx, idToken)
	if err != nil {
		log.Printf("Failed to verify ID token: %v\n", err)
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Failed to verify ID token"})
		return
	}
	if rd := lib.GetRedisClient(); rd != nil {
		rd.Set(context.Background(), fmt.Sprintf("%s:token", token.UID), idToken, 24*time.Hour)
	}
	ctx.Set("uid", token.UID)
	if email, ok := token.Claims["email"].(string); ok {
		ctx.Set("email", email)
	}
}
