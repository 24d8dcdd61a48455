package storage

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"taskboard/domain"
)

// ChangeQueue carries change events from the API to the change notifier.
type ChangeQueue struct {
	queue *azqueue.QueueClient
}

// QueuedChange is a dequeued event plus the receipt needed to delete it.
type QueuedChange struct {
	Event      domain.ChangeEvent
	MessageID  string
	PopReceipt string
	Raw        string
	// DecodeErr is set when the message body is not a change event.
	DecodeErr error
}

// NewChangeQueue opens the named queue.
func NewChangeQueue(connStr, queueName string) (*ChangeQueue, error) {
	queueClientOptions := azqueue.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    5,
				TryTimeout:    time.Minute * 5,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 60,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	q, err := azqueue.NewQueueClientFromConnectionString(connStr, queueName, &queueClientOptions)
	if err != nil {
		return nil, err
	}
	return &ChangeQueue{queue: q}, nil
}

// EnqueueChanges sends the given events to the queue in order.
func (q *ChangeQueue) EnqueueChanges(ctx context.Context, events []domain.ChangeEvent) error {
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := q.queue.EnqueueMessage(ctx, string(data), nil); err != nil {
			return err
		}
	}
	return nil
}

// Dequeue receives up to max messages, hiding them for visibility.
func (q *ChangeQueue) Dequeue(ctx context.Context, max int32, visibility time.Duration) ([]QueuedChange, error) {
	opts := &azqueue.DequeueMessagesOptions{NumberOfMessages: to.Ptr(max)}
	if visibility > 0 {
		opts.VisibilityTimeout = to.Ptr(int32(visibility / time.Second))
	}
	resp, err := q.queue.DequeueMessages(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]QueuedChange, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		if m == nil || m.MessageID == nil || m.PopReceipt == nil {
			continue
		}
		qc := QueuedChange{MessageID: *m.MessageID, PopReceipt: *m.PopReceipt}
		if m.MessageText != nil {
			qc.Raw = *m.MessageText
		}
		qc.DecodeErr = json.Unmarshal([]byte(qc.Raw), &qc.Event)
		out = append(out, qc)
	}
	return out, nil
}

// Delete removes a processed message.
func (q *ChangeQueue) Delete(ctx context.Context, messageID, popReceipt string) error {
	_, err := q.queue.DeleteMessage(ctx, messageID, popReceipt, nil)
	return err
}

// PendingCount reports the approximate number of messages waiting.
func (q *ChangeQueue) PendingCount(ctx context.Context) (int32, error) {
	resp, err := q.queue.GetProperties(ctx, nil)
	if err != nil {
		return 0, err
	}
	if resp.ApproximateMessagesCount == nil {
		return 0, nil
	}
	return *resp.ApproximateMessagesCount, nil
}
