package publisher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"guardian_relay/internal/domain"
)

// SQSAPI is the slice of the SQS client the broker uses.
type SQSAPI interface {
	CreateQueue(ctx context.Context, params *sqs.CreateQueueInput, optFns ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error)
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// SQSBroker publishes to Amazon SQS.
type SQSBroker struct {
	client SQSAPI
}

func NewSQS(client SQSAPI) *SQSBroker {
	return &SQSBroker{client: client}
}

// Ensure relies on CreateQueue being idempotent for an existing queue with
// identical attributes: it returns that queue's URL.
func (b *SQSBroker) Ensure(ctx context.Context, name string, retention time.Duration) (domain.QueueHandle, error) {
	out, err := b.client.CreateQueue(ctx, &sqs.CreateQueueInput{
		QueueName: aws.String(name),
		Attributes: map[string]string{
			string(sqstypes.QueueAttributeNameMessageRetentionPeriod): strconv.FormatInt(int64(retention/time.Second), 10),
		},
	})
	if err != nil {
		return domain.QueueHandle{}, err
	}

	return domain.QueueHandle{Name: name, URL: aws.ToString(out.QueueUrl)}, nil
}

func (b *SQSBroker) Send(ctx context.Context, queue domain.QueueHandle, body []byte) error {
	_, err := b.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(queue.URL),
		MessageBody: aws.String(string(body)),
	})
	return err
}

// QueueAttributes returns all attributes of the queue, e.g. to check its
// retention period.
func (b *SQSBroker) QueueAttributes(ctx context.Context, queue domain.QueueHandle) (map[string]string, error) {
	out, err := b.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(queue.URL),
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameAll},
	})
	if err != nil {
		return nil, fmt.Errorf("get queue attributes: %w", err)
	}
	return out.Attributes, nil
}

func (b *SQSBroker) Close() error {
	return nil
}
