package main

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

const statusTopic = "transcode-status"

// StatusEvent is the JSON message published at each stage boundary.
type StatusEvent struct {
	JobID   string `json:"job_id"`
	Stage   string `json:"stage"`
	Quality string `json:"quality,omitempty"`
	Status  string `json:"status"`
}

// StatusPublisher emits stage events to Kafka for downstream consumers.
// Publishing is fire-and-forget; a broker hiccup never affects the job.
type StatusPublisher struct {
	writer *kafka.Writer
}

func NewStatusPublisher(brokers string) *StatusPublisher {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers),
		Topic:    statusTopic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Printf("✅ Kafka status publisher ready (topic=%s)", statusTopic)
	return &StatusPublisher{writer: writer}
}

func (p *StatusPublisher) Publish(ev StatusEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("❌ Failed to marshal status event: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(ev.JobID),
		Value: payload,
	})
	if err != nil {
		log.Printf("⚠️ Kafka publish failed (job_id=%s): %v", ev.JobID, err)
		return
	}
	log.Printf("📤 Published status to Kafka: job_id=%s, stage=%s, status=%s", ev.JobID, ev.Stage, ev.Status)
}

func (p *StatusPublisher) Close() error {
	return p.writer.Close()
}
