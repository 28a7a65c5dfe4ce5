package controllers

import (
	"errors"
	"fmt"
	"lms/src/db"
	"lms/src/models"
	"lms/src/types"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

func RegisterUser(ctx *gin.Context) {
	var body types.RegisterUserRequestBody
	if err := ctx.ShouldBindJSON(&body); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	uid := ctx.GetString("uid")
	user := models.User{
		Name:  body.Name,
		Email: body.Email,
		UID:   uid,
	}
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		var existing models.User
		err := tx.
			Model(&models.User{}).
			Where(&models.User{Email: body.Email}).
			First(&existing).
			Error
		if err == nil {
			return errors.New("a user with this email already exists")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		log.Printf("Error registering user: %s\n", err.Error())
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"id": user.ID})
}

func LoginUser(ctx *gin.Context) {
	uid := ctx.GetString("uid")
	db := db.GetDb()
	var user models.User
	if err := db.
		Model(&models.User{}).
		Where(&models.User{UID: uid}).
		First(&user).
		Error; err != nil {
		log.Printf("error: %s\n", err.Error())
		ctx.JSON(http.StatusNotFound, gin.H{"error": "account not found"})
		return
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		return tx.
			Model(&models.User{}).
			Where("id", user.ID).
			Update("last_active", &now).
			Error
	})
	if err != nil {
		log.Printf("Error logging in user [%d]: %s\n", user.ID, err.Error())
		ctx.Status(http.StatusBadRequest)
		return
	}
	token, err := createSessionToken(&user)
	if err != nil {
		log.Printf("Error signing session token: %s\n", err.Error())
		ctx.Status(http.StatusInternalServerError)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"token": token})
}

func GetProfile(ctx *gin.Context) {
	userId := ctx.GetUint("id")
	db := db.GetDb()
	var user models.User
	if err := db.
		Model(&models.User{}).
		Preload("Enrollments.Course").
		Where(&models.User{ID: userId}).
		First(&user).
		Error; err != nil {
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"data": user})
}

func createSessionToken(user *models.User) (string, error) {
	claims := types.Claims{
		Email: user.Email,
		Role:  user.Role,
		UID:   user.UID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(user.ID),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	return token.SignedString(jwtKey)
}
