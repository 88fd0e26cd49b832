package aws

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/ferrite-io/ferrite/internal/provider"
)

// zone is a Route53 hosted zone. Only the comment is mutable.
var zoneHandler = &handler{
	forceNew: []string{"name"},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		name := nameAttr(req.Attributes, req.Name)
		callerRef := fmt.Sprintf("ferrite-%d", time.Now().UnixNano())

		input := &route53.CreateHostedZoneInput{
			Name:            &name,
			CallerReference: &callerRef,
		}
		if comment := stringAttr(req.Attributes, "comment"); comment != "" {
			input.HostedZoneConfig = &types.HostedZoneConfig{Comment: &comment}
		}

		resp, err := c.route53.CreateHostedZone(ctx, input)
		if err != nil {
			return "", nil, err
		}
		zoneID := *resp.HostedZone.Id

		outputs := map[string]any{
			"name":   *resp.HostedZone.Name,
			"zoneId": strings.TrimPrefix(zoneID, "/hostedzone/"),
		}
		if resp.DelegationSet != nil {
			nameServers := make([]any, 0, len(resp.DelegationSet.NameServers))
			for _, ns := range resp.DelegationSet.NameServers {
				nameServers = append(nameServers, ns)
			}
			outputs["nameServers"] = nameServers
		}
		return zoneID, outputs, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		if changedSet(req.Prior, req.Attributes)["comment"] {
			comment := stringAttr(req.Attributes, "comment")
			_, err := c.route53.UpdateHostedZoneComment(ctx, &route53.UpdateHostedZoneCommentInput{
				Id:      &req.ID,
				Comment: &comment,
			})
			if err != nil {
				return nil, err
			}
		}
		return map[string]any{
			"name":   nameAttr(req.Attributes, req.Name),
			"zoneId": strings.TrimPrefix(req.ID, "/hostedzone/"),
		}, nil
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		_, err := c.route53.DeleteHostedZone(ctx, &route53.DeleteHostedZoneInput{Id: &req.ID})
		return err
	},
}

// record is a Route53 record set. Create and update both upsert; delete
// rebuilds the record from the last applied attributes because Route53
// requires the full record to remove it.
var recordHandler = &handler{
	required: []string{"zoneId", "type"},
	forceNew: []string{"zoneId", "name", "type"},
	validate: func(req *provider.ValidateRequest) error {
		if len(stringsAttr(req.Attributes, "records")) == 0 && mapAttr(req.Attributes, "alias") == nil {
			return provider.NewError(provider.CodeValidation,
				"aws record %q needs either records or an alias target", req.Name)
		}
		return nil
	},
	create: func(ctx context.Context, c *clients, req *provider.CreateRequest) (string, map[string]any, error) {
		zoneID := stringAttr(req.Attributes, "zoneId")
		name := nameAttr(req.Attributes, req.Name)
		recordType := stringAttr(req.Attributes, "type")

		if err := changeRecord(ctx, c, types.ChangeActionUpsert, req.Attributes, req.Name); err != nil {
			return "", nil, err
		}

		return fmt.Sprintf("%s:%s:%s", zoneID, name, recordType), map[string]any{
			"name":   name,
			"type":   recordType,
			"zoneId": zoneID,
		}, nil
	},
	update: func(ctx context.Context, c *clients, req *provider.UpdateRequest) (map[string]any, error) {
		if err := changeRecord(ctx, c, types.ChangeActionUpsert, req.Attributes, req.Name); err != nil {
			return nil, err
		}
		return map[string]any{
			"name":   nameAttr(req.Attributes, req.Name),
			"type":   stringAttr(req.Attributes, "type"),
			"zoneId": stringAttr(req.Attributes, "zoneId"),
		}, nil
	},
	delete: func(ctx context.Context, c *clients, req *provider.DeleteRequest) error {
		return changeRecord(ctx, c, types.ChangeActionDelete, req.Attributes, req.Name)
	},
}

// changeRecord submits one change batch for the record described by attrs.
func changeRecord(ctx context.Context, c *clients, action types.ChangeAction, attrs map[string]any, fallbackName string) error {
	zoneID := stringAttr(attrs, "zoneId")
	name := nameAttr(attrs, fallbackName)

	recordSet := &types.ResourceRecordSet{
		Name: &name,
		Type: types.RRType(stringAttr(attrs, "type")),
	}
	if alias := mapAttr(attrs, "alias"); alias != nil {
		dnsName := stringAttr(alias, "dnsName")
		hostedZoneID := stringAttr(alias, "hostedZoneId")
		recordSet.AliasTarget = &types.AliasTarget{
			DNSName:              &dnsName,
			HostedZoneId:         &hostedZoneID,
			EvaluateTargetHealth: boolAttr(alias, "evaluateTargetHealth"),
		}
	} else {
		for _, value := range stringsAttr(attrs, "records") {
			recordSet.ResourceRecords = append(recordSet.ResourceRecords, types.ResourceRecord{
				Value: &value,
			})
		}
		recordSet.TTL = func(i int64) *int64 { return &i }(int64(intAttr(attrs, "ttl", 300)))
	}

	_, err := c.route53.ChangeResourceRecordSets(ctx, &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: &zoneID,
		ChangeBatch: &types.ChangeBatch{
			Changes: []types.Change{{
				Action:            action,
				ResourceRecordSet: recordSet,
			}},
		},
	})
	return err
}
