package lib

import (
	"context"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

var awsConfig *aws.Config
var sqsClient *sqs.Client

func awsGetSdkConfig() (*aws.Config, error) {
	if awsConfig != nil {
		return awsConfig, nil
	}
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Printf("Error loading default config: %s\n", err.Error())
		return nil, err
	}
	awsConfig = &cfg
	return &cfg, nil
}

func AWSGetSQSClient() *sqs.Client {
	if sqsClient != nil {
		return sqsClient
	}
	cfg, err := awsGetSdkConfig()
	if err != nil {
		return nil
	}
	sqsClient = sqs.NewFromConfig(*cfg)
	return sqsClient
}

func SQSProduceMessage(queue string, body string) error {
	client := AWSGetSQSClient()
	qurl, err := client.GetQueueUrl(context.Background(), &sqs.GetQueueUrlInput{
		QueueName: aws.String(queue),
	})
	if err != nil {
		log.Printf("Error retrieving queue URL: %s\n", err.Error())
		return err
	}
	out, err := client.SendMessage(context.Background(), &sqs.SendMessageInput{
		QueueUrl:    qurl.QueueUrl,
		MessageBody: aws.String(body),
	})
	if err != nil {
		log.Printf("Could not send message to queue: %s\n", err.Error())
		return err
	}
	log.Printf("Message sent to queue: %s\n", *out.MessageId)
	return nil
}
