package main

import (
	"context"
	"fmt"
	"lms/src/db"
	"lms/src/lib"
	"lms/src/models"
	"lms/src/types"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"github.com/stripe/stripe-go/v82"
	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

func courseRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		GET("/courses", func(ctx *gin.Context) {
			db := db.GetDb()
			var courses []models.Course
			if err := db.
				Model(&models.Course{}).
				Where(&models.Course{Published: true}).
				Order("created_at desc").
				Find(&courses).
				Error; err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": courses})
		}).
		GET("/courses/:slug", func(ctx *gin.Context) {
			slugParam := ctx.Params.ByName("slug")
			db := db.GetDb()
			var course models.Course
			if err := db.
				Model(&models.Course{}).
				Where(&models.Course{Slug: slugParam, Published: true}).
				First(&course).
				Error; err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "course not found"})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": course})
		})
	return apiv1
}

func courseAdminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/courses", func(ctx *gin.Context) {
			role := ctx.GetString("role")
			if role != "admin" {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "not enough permissions to perform this action"})
				return
			}
			var body types.CreateCourseRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			course := models.Course{
				Title:     body.Title,
				Slug:      slug.Make(body.Title),
				Currency:  strings.ToUpper(body.Currency),
				Price:     body.Price,
				Recurring: body.Recurring,
				Interval:  body.Interval,
				CreatedBy: userId,
			}
			if body.Description != "" {
				course.Description = &body.Description
			}

			productId, priceId, err := provisionStripePrice(&course)
			if err != nil {
				log.Printf("[Stripe] Error provisioning price for course: %s\n", err.Error())
				ctx.JSON(http.StatusBadGateway, gin.H{"error": "could not provision course pricing"})
				return
			}
			course.StripeProductId = productId
			course.StripePriceId = priceId

			if course.Recurring {
				planId, err := provisionPayPalPlan(&course)
				if err != nil {
					// Non-fatal: the course still sells through Stripe.
					log.Printf("[PayPal] Error provisioning plan for course: %s\n", err.Error())
				} else {
					course.PayPalPlanId = planId
				}
			}

			db := db.GetDb()
			err = db.Transaction(func(tx *gorm.DB) error {
				return tx.Create(&course).Error
			})
			if err != nil {
				log.Printf("Error creating Course: %s\n", err.Error())
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": course.ID, "slug": course.Slug})
		}).
		PATCH("/courses/:id/publish", func(ctx *gin.Context) {
			role := ctx.GetString("role")
			if role != "admin" {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "not enough permissions to perform this action"})
				return
			}
			id := ctx.Params.ByName("id")
			db := db.GetDb()
			err := db.Transaction(func(tx *gorm.DB) error {
				return tx.
					Model(&models.Course{}).
					Where("id = ?", id).
					Update("published", true).
					Error
			})
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}

// provisionStripePrice creates the provider-side product and price a course
// sells under. Subscription courses get a recurring price usable as a plan.
func provisionStripePrice(course *models.Course) (*string, *string, error) {
	sc := lib.GetStripeClient()
	product, err := sc.V1Products.Create(context.Background(), &stripe.ProductCreateParams{
		Name: stripe.String(course.Title),
	})
	if err != nil {
		return nil, nil, err
	}
	priceParams := &stripe.PriceCreateParams{
		Product:    stripe.String(product.ID),
		Currency:   stripe.String(strings.ToLower(course.Currency)),
		UnitAmount: stripe.Int64(course.Price.Shift(2).IntPart()),
	}
	if course.Recurring {
		priceParams.Recurring = &stripe.PriceCreateRecurringParams{
			Interval: stripe.String(course.Interval),
		}
	}
	price, err := sc.V1Prices.Create(context.Background(), priceParams)
	if err != nil {
		return nil, nil, err
	}
	return &product.ID, &price.ID, nil
}

// provisionPayPalPlan mirrors the Stripe provisioning on the PayPal side so a
// recurring course can also be sold as a PayPal billing subscription.
func provisionPayPalPlan(course *models.Course) (*string, error) {
	pc := lib.GetPayPalClient()
	status, body, err := pc.Do(context.Background(), http.MethodPost, "/v1/catalogs/products", map[string]any{
		"name": course.Title,
		"type": "SERVICE",
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, fmt.Errorf("paypal product create responded with status %d", status)
	}
	productId := gjson.GetBytes(body, "id").String()

	status, body, err = pc.Do(context.Background(), http.MethodPost, "/v1/billing/plans", map[string]any{
		"product_id": productId,
		"name":       course.Title,
		"billing_cycles": []map[string]any{
			{
				"sequence":     1,
				"tenure_type":  "REGULAR",
				"total_cycles": 0,
				"frequency": map[string]any{
					"interval_unit":  strings.ToUpper(course.Interval),
					"interval_count": 1,
				},
				"pricing_scheme": map[string]any{
					"fixed_price": map[string]any{
						"value":         course.Price.StringFixed(2),
						"currency_code": course.Currency,
					},
				},
			},
		},
		"payment_preferences": map[string]any{
			"auto_bill_outstanding": true,
		},
	})
	if err != nil {
		return nil, err
	}
	if status != http.StatusCreated && status != http.StatusOK {
		return nil, fmt.Errorf("paypal plan create responded with status %d", status)
	}
	planId := gjson.GetBytes(body, "id").String()
	return &planId, nil
}
