//go:build integration

package dynamodb

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/pagedigest/internal/kv"
)

const (
	testDynamoDBEndpoint = "http://localhost:4101"
	testDynamoDBRegion   = "us-east-1"
	testTable            = "test_pagedigest_integration"
)

func getDynamoDBClient(t *testing.T, ctx context.Context) *dynamodb.Client {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(testDynamoDBRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "test")),
	)
	require.NoError(t, err)

	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(testDynamoDBEndpoint)
	})
}

func TestIntegration_BackendLifecycle(t *testing.T) {
	ctx := context.Background()
	client := getDynamoDBClient(t, ctx)

	require.NoError(t, CreateTable(ctx, client, testTable, true))
	defer func() { _ = DeleteTable(ctx, client, testTable) }()

	backend := NewBackend(client, testTable)
	require.NoError(t, backend.Ping(ctx))

	require.NoError(t, backend.Set(ctx, kv.Key{"webhookId", "t1", "projectName", "p", "pageName", "b"}, []byte("b")))
	require.NoError(t, backend.Set(ctx, kv.Key{"webhookId", "t1", "projectName", "p", "pageName", "a"}, []byte("a")))
	require.NoError(t, backend.Set(ctx, kv.Key{"webhookId", "t10", "projectName", "p", "pageName", "c"}, []byte("c")))
	require.NoError(t, backend.Set(ctx, kv.Key{"webhooks", "t1"}, []byte("reg1")))
	require.NoError(t, backend.Set(ctx, kv.Key{"webhooks", "t2"}, []byte("reg2")))

	entries, err := backend.List(ctx, kv.Key{"webhookId", "t1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, []byte("a"), entries[0].Value)
	require.Equal(t, []byte("b"), entries[1].Value)

	registrations, err := backend.List(ctx, kv.Key{"webhooks"})
	require.NoError(t, err)
	require.Len(t, registrations, 2)
	require.Equal(t, kv.Key{"webhooks", "t1"}, registrations[0].Key)

	require.NoError(t, backend.Delete(ctx, kv.Key{"webhookId", "t1", "projectName", "p", "pageName", "a"}))

	_, ok, err := backend.Get(ctx, kv.Key{"webhookId", "t1", "projectName", "p", "pageName", "a"})
	require.NoError(t, err)
	require.False(t, ok)
}
