// Package aws implements the provider for Amazon Web Services resources.
// Every supported kind maps to one service of aws-sdk-go-v2 and is handled
// by an entry in the handler table; the provider itself only dispatches,
// classifies SDK failures and manages per-region client sets.
package aws

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/smithy-go"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// handler describes one resource kind: the attributes it insists on, the
// attributes whose change forces recreation, and its lifecycle operations.
// read is optional; kinds without a cheap describe call leave it nil.
type handler struct {
	required []string
	forceNew []string
	validate func(req *provider.ValidateRequest) error
	create   func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error)
	update   func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error)
	delete   func(ctx context.Context, c *clients, req *provider.DeleteRequest) error
	read     func(ctx context.Context, c *clients, req *provider.ReadRequest) (*provider.ReadResponse, error)
}

var handlers = map[string]*handler{
	"network":        networkHandler,
	"subnet":         subnetHandler,
	"securityPolicy": securityPolicyHandler,
	"cluster":        clusterHandler,
	"database":       databaseHandler,
	"table":          tableHandler,
	"service":        serviceHandler,
	"topic":          topicHandler,
	"queue":          queueHandler,
	"function":       functionHandler,
	"bucket":         bucketHandler,
	"role":           roleHandler,
	"key":            keyHandler,
	"secret":         secretHandler,
	"logGroup":       logGroupHandler,
	"zone":           zoneHandler,
	"record":         recordHandler,
	"repository":     repositoryHandler,
}

// clients bundles the service clients for one region.
type clients struct {
	region  string
	ec2     *ec2.Client
	eks     *eks.Client
	rds     *rds.Client
	dynamo  *dynamodb.Client
	ecs     *ecs.Client
	sns     *sns.Client
	sqs     *sqs.Client
	lambda  *lambda.Client
	s3      *s3.Client
	iam     *iam.Client
	kms     *kms.Client
	secrets *secretsmanager.Client
	logs    *cloudwatchlogs.Client
	route53 *route53.Client
	ecr     *ecr.Client
}

type Provider struct {
	mu      sync.Mutex
	clients map[string]*clients
}

func New() *Provider {
	return &Provider{clients: make(map[string]*clients)}
}

func (p *Provider) Name() string { return "aws" }

func (p *Provider) Kinds() []string {
	kinds := make([]string, 0, len(handlers))
	for kind := range handlers {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// clientsFor returns the SDK clients for a region, building them on first
// use. An empty region falls back to the default chain (env, profile,
// instance metadata).
func (p *Provider) clientsFor(ctx context.Context, region string) (*clients, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.clients[region]; ok {
		return c, nil
	}

	opts := []func(*config.LoadOptions) error{
		// The engine owns retry and backoff; a retrying SDK client would
		// multiply attempts.
		config.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	}
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, provider.Wrap(provider.CodeUnavailable, err, "load aws sdk config")
	}

	c := &clients{
		region:  cfg.Region,
		ec2:     ec2.NewFromConfig(cfg),
		eks:     eks.NewFromConfig(cfg),
		rds:     rds.NewFromConfig(cfg),
		dynamo:  dynamodb.NewFromConfig(cfg),
		ecs:     ecs.NewFromConfig(cfg),
		sns:     sns.NewFromConfig(cfg),
		sqs:     sqs.NewFromConfig(cfg),
		lambda:  lambda.NewFromConfig(cfg),
		s3:      s3.NewFromConfig(cfg),
		iam:     iam.NewFromConfig(cfg),
		kms:     kms.NewFromConfig(cfg),
		secrets: secretsmanager.NewFromConfig(cfg),
		logs:    cloudwatchlogs.NewFromConfig(cfg),
		route53: route53.NewFromConfig(cfg),
		ecr:     ecr.NewFromConfig(cfg),
	}
	p.clients[region] = c
	return c, nil
}

func (p *Provider) Validate(ctx context.Context, req *provider.ValidateRequest) error {
	h, err := p.handler(req.Kind)
	if err != nil {
		return err
	}
	for _, attr := range h.required {
		if _, ok := req.Attributes[attr]; !ok {
			return provider.NewError(provider.CodeValidation,
				"aws %s %q requires attribute %q", req.Kind, req.Name, attr)
		}
	}
	if h.validate != nil {
		return h.validate(req)
	}
	return nil
}

func (p *Provider) Diff(ctx context.Context, req *provider.DiffRequest) (*provider.DiffResponse, error) {
	h, err := p.handler(req.Kind)
	if err != nil {
		return nil, err
	}
	changed := provider.DiffAttributes(req.Prior, req.Desired)
	forced := provider.ForcedBy(changed, h.forceNew, req.ReplaceOn)
	return &provider.DiffResponse{
		Changed:     changed,
		Destructive: len(forced) > 0,
		ForcedBy:    forced,
	}, nil
}

func (p *Provider) Create(ctx context.Context, req *provider.CreateRequest) (*provider.CreateResponse, error) {
	h, err := p.handler(req.Kind)
	if err != nil {
		return nil, err
	}
	c, err := p.clientsFor(ctx, stringAttr(req.Attributes, "region"))
	if err != nil {
		return nil, err
	}
	id, outputs, err := h.create(ctx, c, req)
	if err != nil {
		return nil, wrapErr("create", req.Kind, req.Name, err)
	}
	return &provider.CreateResponse{ID: id, Outputs: outputs}, nil
}

func (p *Provider) Update(ctx context.Context, req *provider.UpdateRequest) (*provider.UpdateResponse, error) {
	h, err := p.handler(req.Kind)
	if err != nil {
		return nil, err
	}
	c, err := p.clientsFor(ctx, stringAttr(req.Attributes, "region"))
	if err != nil {
		return nil, err
	}
	outputs, err := h.update(ctx, c, req)
	if err != nil {
		return nil, wrapErr("update", req.Kind, req.Name, err)
	}
	return &provider.UpdateResponse{Outputs: outputs}, nil
}

// Delete tears the resource down. A resource that is already gone counts
// as deleted.
func (p *Provider) Delete(ctx context.Context, req *provider.DeleteRequest) error {
	h, err := p.handler(req.Kind)
	if err != nil {
		return err
	}
	c, err := p.clientsFor(ctx, stringAttr(req.Attributes, "region"))
	if err != nil {
		return err
	}
	if err := h.delete(ctx, c, req); err != nil {
		werr := wrapErr("delete", req.Kind, req.Name, err)
		if provider.IsNotFound(werr) {
			return nil
		}
		return werr
	}
	return nil
}

// Read fetches live attributes for kinds with a cheap describe call.
// A missing resource is reported through Exists, not as an error.
func (p *Provider) Read(ctx context.Context, req *provider.ReadRequest) (*provider.ReadResponse, error) {
	h, err := p.handler(req.Kind)
	if err != nil {
		return nil, err
	}
	if h.read == nil {
		return nil, provider.NewError(provider.CodeUnsupported,
			"aws kind %q does not support read", req.Kind)
	}
	c, err := p.clientsFor(ctx, stringAttr(req.Attributes, "region"))
	if err != nil {
		return nil, err
	}
	resp, err := h.read(ctx, c, req)
	if err != nil {
		werr := wrapErr("read", req.Kind, req.Name, err)
		if provider.IsNotFound(werr) {
			return &provider.ReadResponse{Exists: false}, nil
		}
		return nil, werr
	}
	return resp, nil
}

func (p *Provider) handler(kind string) (*handler, error) {
	h, ok := handlers[kind]
	if !ok {
		return nil, provider.NewError(provider.CodeUnsupported,
			"provider aws does not support kind %q", kind)
	}
	return h, nil
}

// Throttle codes differ between services; this set is the union of what
// the wired services return.
var throttlingCodes = map[string]bool{
	"Throttling":                true,
	"ThrottlingException":       true,
	"ThrottledException":        true,
	"RequestThrottled":          true,
	"RequestThrottledException": true,
	"RequestLimitExceeded":      true,
	"TooManyRequestsException":  true,
	"SlowDown":                  true,
}

// Not-found codes that do not carry "NotFound" in their name.
var notFoundCodes = map[string]bool{
	"NoSuchEntity":      true,
	"NoSuchBucket":      true,
	"NoSuchHostedZone":  true,
	"NoSuchTagSet":      true,
	"QueueDoesNotExist": true,
}

// Conflict codes that do not carry "AlreadyExists", "Conflict" or "InUse"
// in their name.
var conflictCodes = map[string]bool{
	"InvalidGroup.Duplicate":      true,
	"InvalidPermission.Duplicate": true,
	"ResourceExistsException":     true,
}

// isAPIError reports whether err is a smithy API error with the given code.
func isAPIError(err error, code string) bool {
	var ae smithy.APIError
	return errors.As(err, &ae) && ae.ErrorCode() == code
}

// wrapErr turns an SDK failure into a structured provider error. Codes come
// from smithy; throttles and server faults are retryable, everything else is
// terminal. Errors that already carry a classification pass through.
func wrapErr(op, kind, name string, err error) error {
	if err == nil {
		return nil
	}
	var perr *provider.Error
	if errors.As(err, &perr) {
		return err
	}

	out := &provider.Error{
		Code:    provider.CodeInternal,
		Message: fmt.Sprintf("%s aws %s %q", op, kind, name),
		Err:     err,
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		code := ae.ErrorCode()
		switch {
		case throttlingCodes[code]:
			out.Code = provider.CodeThrottling
			out.Retryable = true
		case notFoundCodes[code] || strings.Contains(code, "NotFound"):
			out.Code = provider.CodeNotFound
		case conflictCodes[code] || strings.Contains(code, "AlreadyExists") ||
			strings.Contains(code, "Conflict") || strings.Contains(code, "InUse"):
			out.Code = provider.CodeConflict
		case ae.ErrorFault() == smithy.FaultServer:
			out.Code = provider.CodeUnavailable
			out.Retryable = true
		}
	}
	return out
}
