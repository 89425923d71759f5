package migration

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/eboekhouden_migration/config"
	"cloud.google.com/go/pubsub"
	"github.com/gin-gonic/gin"
)

// PubSubPushEnvelope is the wrapper Google wraps around a push delivery.
// The byte slice field handles base64 decoding during unmarshalling.
type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data"`
		ID   string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// PublishMigrationRun queues a run for the worker over Pub/Sub.
func PublishMigrationRun(ctx context.Context, payload RunPayload) error {
	topicName := strings.TrimSpace(os.Getenv("MIGRATION_TOPIC"))
	if topicName == "" {
		topicName = "eboekhouden-migration"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if envBoolDefault("MIGRATION_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	data, _ := json.Marshal(payload)
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler accepts push deliveries from the migration subscription.
// Malformed envelopes are acked and dropped; redelivering them cannot help.
func PubSubPushHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !envBoolDefault("ENABLE_MIGRATION_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope PubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload RunPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}
		if payload.RunId == 0 || payload.CompanyId == "" {
			c.Status(204)
			return
		}

		if err := ProcessMigrationRun(c.Request.Context(), payload); err != nil {
			// Nack so Pub/Sub redelivers, for lock contention and transient
			// database errors.
			c.Status(500)
			return
		}
		c.Status(204)
	}
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
