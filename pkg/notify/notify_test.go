package notify

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nedaZarei/Cloud_TranslationService/TranslationClient/pkg/models"
)

type fakeChannel struct {
	published []amqp.Publishing
	keys      []string
	closed    bool
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	f.keys = append(f.keys, key)
	f.published = append(f.published, msg)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func TestRabbitPublisherPublish(t *testing.T) {
	ch := &fakeChannel{}
	p := &RabbitPublisher{ch: ch, queue: "translation_progress"}

	require.NoError(t, p.Publish(context.Background(), "3f1c", models.SkippedEvent{Language: "Pig Latin"}))
	require.Len(t, ch.published, 1)

	msg := ch.published[0]
	assert.Equal(t, "translation_progress", ch.keys[0])
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, "skipped", msg.Type)
	assert.Equal(t, "3f1c", msg.Headers["session_id"])
	assert.NotEmpty(t, msg.MessageId)

	var body map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &body))
	assert.Equal(t, "3f1c", body["session_id"])
	assert.Equal(t, "skipped", body["kind"])
	assert.Equal(t, map[string]any{"language": "Pig Latin"}, body["event"])

	require.NoError(t, p.Close())
	assert.True(t, ch.closed)
}

func TestCompletionBody(t *testing.T) {
	c := Completion{
		SessionID:   "3f1c",
		CombinedURL: "http://localhost:8080/download/all.csv",
		Languages: []LanguageLink{
			{Language: "Swedish", URL: "http://localhost:8080/download/sv.csv"},
		},
	}
	assert.Equal(t, "translations complete (1 languages)", completionSubject(c))
	assert.Contains(t, completionText(c), "Swedish: http://localhost:8080/download/sv.csv")
	assert.Contains(t, completionHTML(c), `<a href="http://localhost:8080/download/all.csv">Download combined translations</a>`)
	assert.Contains(t, completionHTML(c), "Download Swedish translations")
}
