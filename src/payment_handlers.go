package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"lms/src/config"
	"lms/src/db"
	"lms/src/lib"
	"lms/src/lib/mailer"
	"lms/src/models"
	"lms/src/payments"
	"lms/src/types"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
)

func paymentHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/payments/initiate", func(ctx *gin.Context) {
			var body types.InitiatePaymentRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			principal := payments.Principal{
				ID:    ctx.GetUint("id"),
				Email: ctx.GetString("email"),
				UID:   ctx.GetString("uid"),
			}
			engine := payments.GetEngine()
			res, err := engine.Initiate(ctx.Request.Context(), principal, &body)
			if err != nil {
				log.Printf("error on initiate: %s\n", err.Error())
				ctx.JSON(paymentErrorStatus(err), gin.H{"error": err.Error()})
				return
			}
			if body.CourseID != nil {
				if err := createPendingEnrollment(principal.ID, *body.CourseID, res.Transaction.ID); err != nil {
					log.Printf("Error creating Enrollment: %s\n", err.Error())
				}
			}
			ctx.JSON(http.StatusOK, gin.H{
				"transaction_id":  res.TransactionID,
				"reference":       res.Reference,
				"client_secret":   res.ClientSecret,
				"subscription_id": res.SubscriptionID,
			})
		}).
		POST("/payments/confirm", func(ctx *gin.Context) {
			var body types.ConfirmPaymentRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			engine := payments.GetEngine()
			res, err := engine.Confirm(ctx.Request.Context(), body.Provider, body.Reference)
			if err != nil {
				if errors.Is(err, payments.ErrAmountMismatch) {
					go publishTransactionUpdate("payments.confirm", &types.JSONB{
						"reference": body.Reference,
						"status":    string(types.TRANSACTION_AMOUNT_MISMATCH),
					})
					ctx.JSON(http.StatusUnprocessableEntity, gin.H{"success": false, "error": "AmountMismatch"})
					return
				}
				log.Printf("error on confirm: %s\n", err.Error())
				ctx.JSON(paymentErrorStatus(err), gin.H{"success": false, "error": err.Error()})
				return
			}
			go completeTransactionSideEffects("payments.confirm", body.Reference, res)
			ctx.JSON(http.StatusOK, gin.H{
				"success":        true,
				"transaction_id": res.TransactionID,
				"payer":          res.Payer,
			})
		}).
		GET("/payments/transactions/:id", func(ctx *gin.Context) {
			idParam := ctx.Params.ByName("id")
			id, err := uuid.Parse(idParam)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var txn models.Transaction
			if err = db.
				Model(&models.Transaction{}).
				Where(&models.Transaction{ID: id, UserID: userId}).
				First(&txn).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": txn})
		})
	return g
}

func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s\n", event.Type)
		switch event.Type {
		case "payment_intent.succeeded":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			log.Printf("[PaymentIntent] ID: %s %s\n", pi.ID, pi.Status)
			go func() {
				engine := payments.GetEngine()
				res, err := engine.Confirm(context.Background(), types.PROVIDER_STRIPE, pi.ID)
				if err != nil {
					// A duplicate of a client-side confirmation is expected
					// here and not an error worth surfacing.
					if errors.Is(err, payments.ErrInvalidTransition) {
						log.Printf("[Stripe] reference %s already confirmed\n", pi.ID)
						return
					}
					log.Printf("Error processing Transaction: %s\n", err.Error())
					return
				}
				completeTransactionSideEffects("payment_intent.succeeded", pi.ID, res)
			}()
		case "payment_intent.payment_failed":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			go func() {
				engine := payments.GetEngine()
				if _, err := engine.Confirm(context.Background(), types.PROVIDER_STRIPE, pi.ID); err != nil {
					log.Printf("[Stripe] reference %s recorded as failed: %s\n", pi.ID, err.Error())
				}
			}()
		case "customer.created":
			var cus stripe.Customer
			if err := json.Unmarshal(event.Data.Raw, &cus); err != nil {
				log.Printf("[Stripe] Error parsing Customer: %s\n", err.Error())
				break
			}
			id := cus.Metadata["id"]
			if id == "" {
				break
			}
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				return tx.
					Model(&models.User{}).
					Where("id = ?", id).
					Updates(&models.User{StripeCustomerId: &cus.ID}).
					Error
			})
			if err != nil {
				log.Printf("Error updating user %s: %s\n", id, err.Error())
			}
		}
		ctx.Status(http.StatusNoContent)
	})
	return apiv1
}

// completeTransactionSideEffects runs after a transaction reaches completed:
// enrollments activate, the update fans out to the queue, and a receipt goes
// out through the mailer. None of these block the payment response.
func completeTransactionSideEffects(source string, reference string, res *payments.ConfirmResult) {
	txnId, err := uuid.Parse(res.TransactionID)
	if err != nil {
		log.Printf("Could not parse transaction id %s: %s\n", res.TransactionID, err.Error())
		return
	}
	var txn models.Transaction
	db := db.GetDb()
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&models.Transaction{}).
			Preload("User").
			Where(&models.Transaction{ID: txnId}).
			First(&txn).
			Error; err != nil {
			return err
		}
		return tx.
			Model(&models.Enrollment{}).
			Where(&models.Enrollment{TransactionID: &txnId}).
			Updates(&models.Enrollment{Status: types.ENROLLMENT_ACTIVE}).
			Error
	})
	if err != nil {
		log.Printf("Error activating enrollments for [%s]: %s\n", reference, err.Error())
		return
	}

	if txn.Provider == types.PROVIDER_PAYPAL {
		recordPayPalPayer(txn.UserID, res.Payer)
	}

	publishTransactionUpdate(source, &types.JSONB{
		"reference":      reference,
		"transaction_id": res.TransactionID,
		"status":         string(types.TRANSACTION_COMPLETED),
		"payer":          res.Payer,
	})

	if txn.User.Email != "" {
		if err := mailer.NewMailerMessage(&lib.SendMailInput{
			From:     os.Getenv("MAIL_FROM"),
			FromName: "Course Payments",
			To:       []string{txn.User.Email},
			Subject:  "Payment received",
			Body:     fmt.Sprintf("We received your payment of %s %s. Transaction reference: %s.", txn.Amount.StringFixed(2), txn.Currency, res.TransactionID),
		}); err != nil {
			log.Printf("Error queueing receipt email: %s\n", err.Error())
		}
	}
}

// recordPayPalPayer remembers the payer id that came back with a completed
// PayPal transaction, mirroring how the Stripe webhook stores the customer id.
func recordPayPalPayer(userId uint, payer types.Metadata) {
	payerId, ok := payer["payer_id"].(string)
	if !ok || payerId == "" {
		return
	}
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.
			Model(&models.User{}).
			Where("id = ?", userId).
			Updates(&models.User{PayPalPayerId: &payerId}).
			Error
	})
	if err != nil {
		log.Printf("Error updating user %d: %s\n", userId, err.Error())
	}
}

func publishTransactionUpdate(source string, payload *types.JSONB) {
	apiEnv := os.Getenv("API_ENV")
	body := types.JSONB{
		"source": source,
	}
	for k, v := range *payload {
		body[k] = v
	}
	if apiEnv == string(types.Test) || apiEnv == string(types.Production) {
		b, _ := json.Marshal(&body)
		if err := lib.SQSProduceMessage(config.TRANSACTION_UPDATES_QUEUE, string(b)); err != nil {
			log.Printf("Error sending message to queue: %s\n", err.Error())
		}
		return
	}
	if err := lib.KafkaProduceMessage("PaymentTransactionUpdatesProducer", config.TRANSACTION_UPDATES_QUEUE, body); err != nil {
		log.Printf("Error sending message to queue: %s\n", err.Error())
	}
}

func createPendingEnrollment(userId uint, courseId uint, txnId uuid.UUID) error {
	db := db.GetDb()
	return db.Transaction(func(tx *gorm.DB) error {
		var course models.Course
		if err := tx.
			Model(&models.Course{}).
			Where(&models.Course{ID: courseId}).
			First(&course).
			Error; err != nil {
			return err
		}
		enrollment := models.Enrollment{
			UserID:        userId,
			CourseID:      courseId,
			TransactionID: &txnId,
			Status:        types.ENROLLMENT_PENDING,
		}
		return tx.Create(&enrollment).Error
	})
}

func paymentErrorStatus(err error) int {
	var verr *payments.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	if errors.Is(err, payments.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, payments.ErrInvalidTransition) {
		return http.StatusConflict
	}
	if errors.Is(err, payments.ErrAmountMismatch) {
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, payments.ErrRemoteIncomplete) {
		return http.StatusBadRequest
	}
	var gerr *payments.GatewayError
	if errors.As(err, &gerr) {
		switch gerr.Kind {
		case payments.GatewayNotConfigured:
			return http.StatusInternalServerError
		case payments.GatewayRemoteUnavailable:
			return http.StatusBadGateway
		default:
			return http.StatusBadRequest
		}
	}
	return http.StatusBadRequest
}
