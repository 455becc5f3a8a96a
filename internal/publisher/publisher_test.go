package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	smithy "github.com/aws/smithy-go"
	"github.com/stretchr/testify/suite"

	"guardian_relay/internal/domain"
)

// fakeSQS keeps queues in memory and mimics CreateQueue's create-or-get
// behavior.
type fakeSQS struct {
	queues    map[string]map[string]string
	messages  map[string][]string
	createErr error
	sendErr   error
	creates   int
}

func newFakeSQS() *fakeSQS {
	return &fakeSQS{
		queues:   map[string]map[string]string{},
		messages: map[string][]string{},
	}
}

func (f *fakeSQS) url(name string) string {
	return "https://sqs.eu-west-2.amazonaws.com/000000000000/" + name
}

func (f *fakeSQS) CreateQueue(_ context.Context, in *sqs.CreateQueueInput, _ ...func(*sqs.Options)) (*sqs.CreateQueueOutput, error) {
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	name := aws.ToString(in.QueueName)
	if existing, ok := f.queues[name]; ok {
		for k, v := range in.Attributes {
			if existing[k] != v {
				return nil, &sqstypes.QueueNameExists{Message: aws.String("A queue already exists with the same name and a different value for attribute " + k)}
			}
		}
	} else {
		attrs := map[string]string{}
		for k, v := range in.Attributes {
			attrs[k] = v
		}
		f.queues[name] = attrs
	}
	return &sqs.CreateQueueOutput{QueueUrl: aws.String(f.url(name))}, nil
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	queueURL := aws.ToString(in.QueueUrl)
	f.messages[queueURL] = append(f.messages[queueURL], aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{MessageId: aws.String(fmt.Sprintf("msg-%d", len(f.messages[queueURL])))}, nil
}

func (f *fakeSQS) GetQueueAttributes(_ context.Context, in *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	for name, attrs := range f.queues {
		if f.url(name) == aws.ToString(in.QueueUrl) {
			return &sqs.GetQueueAttributesOutput{Attributes: attrs}, nil
		}
	}
	return nil, &sqstypes.QueueDoesNotExist{Message: aws.String("The specified queue does not exist.")}
}

type PublisherTestSuite struct {
	suite.Suite
	ctx    context.Context
	logs   *bytes.Buffer
	sqs    *fakeSQS
	broker *SQSBroker
	pub    *Publisher
}

func (s *PublisherTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.logs = &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(s.logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	s.sqs = newFakeSQS()
	s.broker = NewSQS(s.sqs)
	s.pub = New(s.broker, DefaultRetention, logger)
}

func TestPublisherTestSuite(t *testing.T) {
	suite.Run(t, new(PublisherTestSuite))
}

func (s *PublisherTestSuite) TestEnsureQueue_IdempotentWithFixedRetention() {
	first, err := s.pub.EnsureQueue(s.ctx, "guardian_content_queue")
	s.Require().NoError(err)

	second, err := s.pub.EnsureQueue(s.ctx, "guardian_content_queue")
	s.Require().NoError(err)

	s.Equal(first, second)
	s.Contains(first.URL, "guardian_content_queue")
	s.Equal(2, s.sqs.creates)

	attrs, err := s.broker.QueueAttributes(s.ctx, first)
	s.Require().NoError(err)
	s.Equal("259200", attrs[string(sqstypes.QueueAttributeNameMessageRetentionPeriod)])
}

func (s *PublisherTestSuite) TestEnsureQueue_Rejected() {
	s.sqs.createErr = &smithy.GenericAPIError{Code: "InvalidParameterValue", Message: "Can only include alphanumeric characters"}

	queue, err := s.pub.EnsureQueue(s.ctx, "bad name!")

	s.ErrorIs(err, ErrQueueCreate)
	s.Empty(queue.URL)
	s.Contains(s.logs.String(), "level=ERROR")
	s.Contains(s.logs.String(), "Couldn't create queue named 'bad name!'.")
	s.Contains(s.logs.String(), "InvalidParameterValue")
}

func (s *PublisherTestSuite) TestPublish_WritesEnvelope() {
	queue, err := s.pub.EnsureQueue(s.ctx, "guardian_content_queue")
	s.Require().NoError(err)

	env := domain.NewEnvelope("guardian_content", domain.SearchQuery{Term: "machine learning"}, []domain.ResultRecord{
		{PublicationDate: "2024-05-01T10:00:00Z", Title: "A", URL: "https://example.com/a"},
	})

	s.Require().NoError(s.pub.Publish(s.ctx, queue, env))

	bodies := s.sqs.messages[queue.URL]
	s.Require().Len(bodies, 1)

	var received map[string]any
	s.Require().NoError(json.Unmarshal([]byte(bodies[0]), &received))
	s.Equal("guardian_content", received["ID"])
	s.Equal("machine learning", received["Search Term"])
	s.Nil(received["Date From"])
	s.Equal(false, received["Exact Match?"])
	s.Len(received["Results"], 1)

	s.Contains(s.logs.String(), "level=INFO")
	s.Contains(s.logs.String(), "id=guardian_content")
}

func (s *PublisherTestSuite) TestPublish_RejectedLeavesQueueIntact() {
	queue, err := s.pub.EnsureQueue(s.ctx, "guardian_content_queue")
	s.Require().NoError(err)
	s.sqs.sendErr = &sqstypes.QueueDoesNotExist{Message: aws.String("The specified queue does not exist.")}

	err = s.pub.Publish(s.ctx, queue, domain.NewEnvelope("id", domain.SearchQuery{Term: "x"}, nil))

	s.ErrorIs(err, ErrQueuePublish)
	s.Contains(s.logs.String(), "Failed to store API results in queue "+queue.URL)
	s.Contains(s.sqs.queues, "guardian_content_queue")
	s.Empty(s.sqs.messages[queue.URL])
}

func (s *PublisherTestSuite) TestNew_DefaultsRetention() {
	pub := New(s.broker, 0, slog.New(slog.NewTextHandler(s.logs, nil)))

	queue, err := pub.EnsureQueue(s.ctx, "defaulted")
	s.Require().NoError(err)

	attrs, err := s.broker.QueueAttributes(s.ctx, queue)
	s.Require().NoError(err)
	s.Equal("259200", attrs[string(sqstypes.QueueAttributeNameMessageRetentionPeriod)])
}

type closingBroker struct {
	Broker
	closed bool
	err    error
}

func (b *closingBroker) Close() error {
	b.closed = true
	return b.err
}

func (s *PublisherTestSuite) TestClose_ClosesBroker() {
	broker := &closingBroker{err: errors.New("already closed")}
	pub := New(broker, DefaultRetention, slog.New(slog.NewTextHandler(s.logs, nil)))

	s.EqualError(pub.Close(), "already closed")
	s.True(broker.closed)
}
