package aws

import (
	"context"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// topic is an SNS topic, identified by its ARN. FIFO cannot be toggled on
// an existing topic.
var topicHandler = &handler{
	forceNew: []string{"name", "fifo"},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		name := nameAttr(req.Attributes, req.Name)
		fifo := boolAttr(req.Attributes, "fifo")
		if fifo && !strings.HasSuffix(name, ".fifo") {
			name += ".fifo"
		}

		input := &sns.CreateTopicInput{
			Name:       &name,
			Attributes: make(map[string]string),
		}
		if fifo {
			input.Attributes["FifoTopic"] = "true"
		}
		if display := stringAttr(req.Attributes, "displayName"); display != "" {
			input.Attributes["DisplayName"] = display
		}
		for k, v := range tagsAttr(req.Attributes, "tags") {
			input.Tags = append(input.Tags, snstypes.Tag{Key: &k, Value: &v})
		}

		resp, err := c.sns.CreateTopic(ctx, input)
		if err != nil {
			return "", nil, err
		}

		return *resp.TopicArn, map[string]any{
			"arn":  *resp.TopicArn,
			"name": name,
		}, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		if changedSet(req.Prior, req.Attributes)["displayName"] {
			display := stringAttr(req.Attributes, "displayName")
			_, err := c.sns.SetTopicAttributes(ctx, &sns.SetTopicAttributesInput{
				TopicArn:       &req.ID,
				AttributeName:  func(s string) *string { return &s }("DisplayName"),
				AttributeValue: &display,
			})
			if err != nil {
				return nil, err
			}
		}
		return map[string]any{
			"arn":  req.ID,
			"name": nameAttr(req.Attributes, req.Name),
		}, nil
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		_, err := c.sns.DeleteTopic(ctx, &sns.DeleteTopicInput{TopicArn: &req.ID})
		return err
	},
	read: func(ctx context.Context, c *clients, req *provider.ReadRequest) (*provider.ReadResponse, error) {
		resp, err := c.sns.GetTopicAttributes(ctx, &sns.GetTopicAttributesInput{TopicArn: &req.ID})
		if err != nil {
			return nil, err
		}
		return &provider.ReadResponse{
			Exists: true,
			Outputs: map[string]any{
				"id":   req.ID,
				"arn":  resp.Attributes["TopicArn"],
				"name": nameAttr(req.Attributes, req.Name),
			},
		}, nil
	},
}

// queue is an SQS queue, identified by its URL. Delivery attributes change
// in place through SetQueueAttributes.
var queueHandler = &handler{
	forceNew: []string{"name", "fifo"},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		name := nameAttr(req.Attributes, req.Name)
		fifo := boolAttr(req.Attributes, "fifo")
		if fifo && !strings.HasSuffix(name, ".fifo") {
			name += ".fifo"
		}

		attrs := queueAttributes(req.Attributes)
		if fifo {
			attrs["FifoQueue"] = "true"
		}

		resp, err := c.sqs.CreateQueue(ctx, &sqs.CreateQueueInput{
			QueueName:  &name,
			Attributes: attrs,
			Tags:       tagsAttr(req.Attributes, "tags"),
		})
		if err != nil {
			return "", nil, err
		}
		queueURL := *resp.QueueUrl

		outputs := map[string]any{
			"url":  queueURL,
			"name": name,
		}
		if arn, err := queueArn(ctx, c, queueURL); err == nil && arn != "" {
			outputs["arn"] = arn
		}
		return queueURL, outputs, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		if attrs := queueAttributes(req.Attributes); len(attrs) > 0 {
			_, err := c.sqs.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
				QueueUrl:   &req.ID,
				Attributes: attrs,
			})
			if err != nil {
				return nil, err
			}
		}
		outputs := map[string]any{
			"url":  req.ID,
			"name": nameAttr(req.Attributes, req.Name),
		}
		if arn, err := queueArn(ctx, c, req.ID); err == nil && arn != "" {
			outputs["arn"] = arn
		}
		return outputs, nil
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		_, err := c.sqs.DeleteQueue(ctx, &sqs.DeleteQueueInput{QueueUrl: &req.ID})
		return err
	},
	read: func(ctx context.Context, c *clients, req *provider.ReadRequest) (*provider.ReadResponse, error) {
		arn, err := queueArn(ctx, c, req.ID)
		if err != nil {
			return nil, err
		}
		return &provider.ReadResponse{
			Exists: true,
			Outputs: map[string]any{
				"id":  req.ID,
				"url": req.ID,
				"arn": arn,
			},
		}, nil
	},
}

// queueAttributes maps the declared delivery attributes onto SQS attribute
// names. Only explicitly set attributes are sent.
func queueAttributes(attrs map[string]any) map[string]string {
	out := make(map[string]string)
	for attr, sqsName := range map[string]string{
		"visibilityTimeout": "VisibilityTimeout",
		"messageRetention":  "MessageRetentionPeriod",
		"delaySeconds":      "DelaySeconds",
		"receiveWaitTime":   "ReceiveMessageWaitTimeSeconds",
	} {
		if _, ok := attrs[attr]; ok {
			out[sqsName] = strconv.Itoa(intAttr(attrs, attr, 0))
		}
	}
	if boolAttr(attrs, "contentBasedDeduplication") {
		out["ContentBasedDeduplication"] = "true"
	}
	return out
}

func queueArn(ctx context.Context, c *clients, queueURL string) (string, error) {
	resp, err := c.sqs.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       &queueURL,
		AttributeNames: []sqstypes.QueueAttributeName{sqstypes.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return "", err
	}
	return resp.Attributes[string(sqstypes.QueueAttributeNameQueueArn)], nil
}
