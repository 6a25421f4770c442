package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/pagedigest/internal/kv"
)

const (
	attrPK    = "pk"
	attrSK    = "sk"
	attrValue = "value"

	// sortRoot is the sort key of a two part key. Longer keys append their
	// remaining parts after a separator.
	sortRoot = "k"
)

var ErrThrottled = errors.New("dynamodb request throttled")

// Backend implements kv.Backend on a single DynamoDB table with a string
// partition key (pk) and string sort key (sk).
//
// The first two key parts form the partition key, so every page of a webhook
// lives in one partition and a prefix scan of ["webhookId", id] is a Query.
type Backend struct {
	client    *dynamodb.Client
	tableName string
}

var _ kv.Backend = (*Backend)(nil)

// NewBackend creates a DynamoDB backend for an existing table.
func NewBackend(client *dynamodb.Client, tableName string) *Backend {
	return &Backend{
		client:    client,
		tableName: tableName,
	}
}

// itemKey splits a key into its partition and sort key attributes.
func itemKey(key kv.Key) (pk, sk string) {
	if len(key) == 1 {
		return key[0], sortRoot
	}
	pk = key[0] + kv.Separator + key[1]
	if len(key) == 2 {
		return pk, sortRoot
	}
	return pk, sortRoot + kv.Separator + strings.Join(key[2:], kv.Separator)
}

// keyFromItem reverses itemKey.
func keyFromItem(pk, sk string) kv.Key {
	key := kv.DecodeKey(pk)
	rest, ok := strings.CutPrefix(sk, sortRoot+kv.Separator)
	if !ok {
		return key
	}
	return append(key, kv.DecodeKey(rest)...)
}

func keyAttributes(key kv.Key) map[string]types.AttributeValue {
	pk, sk := itemKey(key)
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: pk},
		attrSK: &types.AttributeValueMemberS{Value: sk},
	}
}

// Get retrieves the value stored at key.
func (b *Backend) Get(ctx context.Context, key kv.Key) ([]byte, bool, error) {
	if err := key.Validate(); err != nil {
		return nil, false, err
	}

	result, err := b.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(b.tableName),
		Key:            keyAttributes(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, false, wrapAWSError(err, "failed to get entry")
	}

	if result.Item == nil {
		return nil, false, nil
	}

	value, err := itemValue(result.Item)
	if err != nil {
		return nil, false, err
	}

	return value, true, nil
}

// Set stores value at key, replacing any previous item.
func (b *Backend) Set(ctx context.Context, key kv.Key, value []byte) error {
	if err := key.Validate(); err != nil {
		return err
	}

	if value == nil {
		value = []byte{}
	}

	item := keyAttributes(key)
	item[attrValue] = &types.AttributeValueMemberB{Value: value}

	_, err := b.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(b.tableName),
		Item:      item,
	})
	if err != nil {
		return wrapAWSError(err, "failed to set entry")
	}

	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (b *Backend) Delete(ctx context.Context, key kv.Key) error {
	if err := key.Validate(); err != nil {
		return err
	}

	_, err := b.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(b.tableName),
		Key:       keyAttributes(key),
	})
	if err != nil {
		return wrapAWSError(err, "failed to delete entry")
	}

	return nil
}

// List returns every entry under prefix ordered by encoded key. Prefixes of two
// or more parts are served by a Query on one partition; a single part prefix
// falls back to a Scan.
func (b *Backend) List(ctx context.Context, prefix kv.Key) ([]kv.Entry, error) {
	if err := prefix.Validate(); err != nil {
		return nil, err
	}

	if len(prefix) == 1 {
		return b.scan(ctx, prefix)
	}

	pk, sk := itemKey(prefix)

	paginator := dynamodb.NewQueryPaginator(b.client, &dynamodb.QueryInput{
		TableName:              aws.String(b.tableName),
		KeyConditionExpression: aws.String("#pk = :pk AND begins_with(#sk, :sk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": attrPK,
			"#sk": attrSK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
			":sk": &types.AttributeValueMemberS{Value: sk + kv.Separator},
		},
		ConsistentRead: aws.Bool(true),
	})

	entries := make([]kv.Entry, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrapAWSError(err, "failed to query entries")
		}
		for _, item := range page.Items {
			entry, err := itemEntry(item)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}

	return entries, nil
}

func (b *Backend) scan(ctx context.Context, prefix kv.Key) ([]kv.Entry, error) {
	paginator := dynamodb.NewScanPaginator(b.client, &dynamodb.ScanInput{
		TableName:        aws.String(b.tableName),
		FilterExpression: aws.String("begins_with(#pk, :pk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": attrPK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: prefix[0] + kv.Separator},
		},
		ConsistentRead: aws.Bool(true),
	})

	entries := make([]kv.Entry, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrapAWSError(err, "failed to scan entries")
		}
		for _, item := range page.Items {
			entry, err := itemEntry(item)
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Key.Encode() < entries[j].Key.Encode()
	})

	log.Debug().Str("prefix", prefix.String()).Int("count", len(entries)).Msg("Scanned table")

	return entries, nil
}

// Ping checks the table is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	_, err := b.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(b.tableName),
	})
	if err != nil {
		return wrapAWSError(err, "failed to describe table")
	}
	return nil
}

// Close is a no-op; the SDK client holds no resources that need releasing.
func (b *Backend) Close() error {
	return nil
}

func itemEntry(item map[string]types.AttributeValue) (kv.Entry, error) {
	pk, ok := item[attrPK].(*types.AttributeValueMemberS)
	if !ok {
		return kv.Entry{}, fmt.Errorf("%w: item missing %s", kv.ErrCorrupt, attrPK)
	}
	sk, ok := item[attrSK].(*types.AttributeValueMemberS)
	if !ok {
		return kv.Entry{}, fmt.Errorf("%w: item missing %s", kv.ErrCorrupt, attrSK)
	}

	value, err := itemValue(item)
	if err != nil {
		return kv.Entry{}, err
	}

	return kv.Entry{Key: keyFromItem(pk.Value, sk.Value), Value: value}, nil
}

func itemValue(item map[string]types.AttributeValue) ([]byte, error) {
	value, ok := item[attrValue].(*types.AttributeValueMemberB)
	if !ok {
		return nil, fmt.Errorf("%w: item missing binary %s", kv.ErrCorrupt, attrValue)
	}
	return value.Value, nil
}

// wrapAWSError wraps AWS SDK errors, identifying throttling errors.
// Every failure is reported as kv.ErrUnavailable.
func wrapAWSError(err error, msg string) error {
	if err == nil {
		return nil
	}

	var provisionedErr *types.ProvisionedThroughputExceededException
	if errors.As(err, &provisionedErr) {
		return fmt.Errorf("%s: %w: %w: %v", msg, kv.ErrUnavailable, ErrThrottled, err)
	}

	errMsg := err.Error()
	if strings.Contains(errMsg, "ThrottlingException") ||
		strings.Contains(errMsg, "RequestLimitExceeded") ||
		strings.Contains(errMsg, "Throttling") {
		return fmt.Errorf("%s: %w: %w: %v", msg, kv.ErrUnavailable, ErrThrottled, err)
	}

	return fmt.Errorf("%s: %w: %w", msg, kv.ErrUnavailable, err)
}
