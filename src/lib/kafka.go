package lib

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

var kafkaProducers = map[string]*kafka.Producer{}

func KafkaGetProducer(clientId string) (*kafka.Producer, error) {
	if p, ok := kafkaProducers[clientId]; ok {
		return p, nil
	}
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
		"client.id":         clientId,
		"acks":              "all",
	})
	if err != nil {
		log.Printf("Error on producer: %s\n", err.Error())
		return nil, err
	}
	kafkaProducers[clientId] = p
	return p, nil
}

func KafkaProduceMessage(clientId string, topic string, payload map[string]any) error {
	p, err := KafkaGetProducer(clientId)
	if err != nil {
		return err
	}
	value, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	deliveryChan := make(chan kafka.Event, 1)
	err = p.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          value,
	}, deliveryChan)
	if err != nil {
		return err
	}
	e := <-deliveryChan
	m, ok := e.(*kafka.Message)
	if !ok {
		return fmt.Errorf("unexpected event type on delivery channel: %v", e)
	}
	if m.TopicPartition.Error != nil {
		return m.TopicPartition.Error
	}
	log.Printf("[Kafka] delivered message to %s [%d] at offset %v\n", *m.TopicPartition.Topic, m.TopicPartition.Partition, m.TopicPartition.Offset)
	return nil
}

func KafkaConsumer(groupId string, topics []string, handler func(value []byte)) error {
	master, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
		"group.id":          groupId,
		"auto.offset.reset": "smallest",
		"retry.backoff.ms":  100,
	})
	if err != nil {
		log.Printf("Error on consumer: %s\n", err.Error())
		return err
	}
	if err := master.SubscribeTopics(topics, nil); err != nil {
		log.Printf("Error subscribing to topics: %s\n", err.Error())
		return err
	}
	go func() {
		log.Printf("[Kafka] %s: waiting for messages...\n", groupId)
		run := true
		for run {
			ev := master.Poll(100)
			switch e := ev.(type) {
			case *kafka.Message:
				handler(e.Value)
			case kafka.Error:
				fmt.Fprintf(os.Stderr, "%% Error: %v\n", e)
				run = false
			default:
			}
		}
		master.Close()
	}()
	return nil
}
