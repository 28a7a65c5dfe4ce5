package boot

import (
	"encoding/json"
	"errors"
	"lms/src/config"
	"lms/src/db"
	"lms/src/lib"
	libaws "lms/src/lib/aws"
	"lms/src/models"
	"lms/src/types"
	"log"
	"os"

	"github.com/tidwall/gjson"
	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.Enrollment{},
		&models.Transaction{},
		&models.TrailLog{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitBroker wires the queue consumers: transaction status changes land in the
// audit trail, and queued receipt emails go out through SMTP.
func InitBroker() {
	apiEnv := os.Getenv("API_ENV")
	emailQueue := os.Getenv("EMAIL_QUEUE")
	if apiEnv == string(types.Test) || apiEnv == string(types.Production) {
		consumer := libaws.NewSQSConsumer(config.TRANSACTION_UPDATES_QUEUE, recordTransactionTrail)
		consumer.Listen()
		if emailQueue != "" {
			mails := libaws.NewSQSConsumer(emailQueue, sendQueuedEmail)
			mails.Listen()
		}
		return
	}
	if err := lib.KafkaConsumer(
		"PaymentTransactionUpdatesConsumer",
		[]string{config.TRANSACTION_UPDATES_QUEUE},
		func(value []byte) { recordTransactionTrail(string(value)) },
	); err != nil {
		log.Printf("Error starting Kafka consumer: %s\n", err.Error())
	}
	if emailQueue != "" {
		if err := lib.KafkaConsumer(
			"EmailsConsumer",
			[]string{emailQueue},
			func(value []byte) { sendQueuedEmail(string(value)) },
		); err != nil {
			log.Printf("Error starting Kafka consumer: %s\n", err.Error())
		}
	}
}

func parseMailerMessage(spayload string) (*lib.SendMailInput, error) {
	if !gjson.Valid(spayload) {
		return nil, errors.New("invalid json body")
	}
	to := make([]string, 0)
	for _, item := range gjson.Get(spayload, "to").Array() {
		to = append(to, item.String())
	}
	if len(to) == 0 {
		return nil, errors.New("message has no recipients")
	}
	input := &lib.SendMailInput{
		From:     gjson.Get(spayload, "from").String(),
		FromName: gjson.Get(spayload, "from-name").String(),
		To:       to,
		ReplyTo:  gjson.Get(spayload, "reply-to").String(),
		Subject:  gjson.Get(spayload, "subject").String(),
		Body:     gjson.Get(spayload, "body").String(),
		Html:     gjson.Get(spayload, "html").Bool(),
	}
	return input, nil
}

func sendQueuedEmail(spayload string) {
	input, err := parseMailerMessage(spayload)
	if err != nil {
		log.Printf("[MAILER] Received a bad message body: %s\n", err.Error())
		return
	}
	go func() {
		if err := lib.SendMail(input); err != nil {
			log.Printf("[MAILER] error sending email: %s\n", err.Error())
			return
		}
		log.Printf("[MAILER]: an email has been sent to %s\n", input.To)
	}()
}

func recordTransactionTrail(body string) {
	var payload types.JSONB
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		log.Printf("[Trail] Could not parse message body: %s\n", err.Error())
		return
	}
	source, _ := payload["source"].(string)
	reference, _ := payload["reference"].(string)
	trail := models.TrailLog{
		Type:      source,
		Initiator: "payments",
		Group:     reference,
		Payload:   payload,
	}
	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&trail).Error
	})
	if err != nil {
		log.Printf("[Trail] Error recording trail entry: %s\n", err.Error())
		return
	}
	log.Printf("[Trail] recorded %s for reference %s\n", source, reference)
}
