package store

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodbstreams"
	streamtypes "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
)

const streamPollInterval = time.Second

// StreamTailer reads DynamoDB Streams for every collection and publishes the records to a Broker.
// Used when ENABLE_STREAMS is set so writes from other instances reach local subscribers.
type StreamTailer struct {
	Streams *dynamodbstreams.Client
	store   *DynamoStore
}

// NewStreamTailer creates a tailer publishing into the store's feed
func NewStreamTailer(streams *dynamodbstreams.Client, store *DynamoStore) *StreamTailer {
	return &StreamTailer{Streams: streams, store: store}
}

// Run tails every collection until ctx is cancelled
func (t *StreamTailer) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, c := range Collections {
		arn, err := t.streamARN(ctx, c)
		if err != nil {
			return err
		}
		wg.Add(1)
		go func(c Collection, arn string) {
			defer wg.Done()
			t.tailStream(ctx, c, arn)
		}(c, arn)
	}
	wg.Wait()
	return nil
}

func (t *StreamTailer) streamARN(ctx context.Context, c Collection) (string, error) {
	name := t.store.tableName(c)
	output, err := t.store.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
	if err != nil {
		return "", fmt.Errorf("failed to describe table '%s': %w", name, err)
	}
	if output.Table == nil || output.Table.LatestStreamArn == nil {
		return "", fmt.Errorf("table '%s' has no stream enabled", name)
	}
	return *output.Table.LatestStreamArn, nil
}

// tailStream follows the open shards of one stream, picking up new shards as they appear
func (t *StreamTailer) tailStream(ctx context.Context, c Collection, arn string) {
	tailing := map[string]bool{}
	startup := true
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		shards, err := t.openShards(ctx, arn)
		if err != nil {
			log.Printf("⚠️ Failed to describe stream for '%s': %v", c.Table, err)
		} else {
			for _, start := range pendingShards(tailing, shards, startup) {
				wg.Add(1)
				go func(start shardStart) {
					defer wg.Done()
					t.tailShard(ctx, c, arn, start)
				}(start)
			}
			startup = false
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(30 * time.Second):
		}
	}
}

type shardStart struct {
	id   string
	from streamtypes.ShardIteratorType
}

// pendingShards marks the untailed shards of open as tailed and says where to read each from.
// Shards seen on the first pass start at LATEST; any shard found later is a child of a closed
// shard and is read from TRIM_HORIZON so records written before its discovery are kept.
func pendingShards(tailing map[string]bool, open []string, startup bool) []shardStart {
	from := streamtypes.ShardIteratorTypeTrimHorizon
	if startup {
		from = streamtypes.ShardIteratorTypeLatest
	}
	var starts []shardStart
	for _, id := range open {
		if tailing[id] {
			continue
		}
		tailing[id] = true
		starts = append(starts, shardStart{id: id, from: from})
	}
	return starts
}

func (t *StreamTailer) openShards(ctx context.Context, arn string) ([]string, error) {
	var shards []string
	var start *string
	for {
		output, err := t.Streams.DescribeStream(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             aws.String(arn),
			ExclusiveStartShardId: start,
		})
		if err != nil {
			return nil, err
		}
		for _, shard := range output.StreamDescription.Shards {
			if shard.SequenceNumberRange != nil && shard.SequenceNumberRange.EndingSequenceNumber != nil {
				continue
			}
			shards = append(shards, aws.ToString(shard.ShardId))
		}
		start = output.StreamDescription.LastEvaluatedShardId
		if start == nil {
			return shards, nil
		}
	}
}

func (t *StreamTailer) tailShard(ctx context.Context, c Collection, arn string, start shardStart) {
	it, err := t.Streams.GetShardIterator(ctx, &dynamodbstreams.GetShardIteratorInput{
		StreamArn:         aws.String(arn),
		ShardId:           aws.String(start.id),
		ShardIteratorType: start.from,
	})
	if err != nil {
		log.Printf("⚠️ Failed to get shard iterator for '%s': %v", c.Table, err)
		return
	}

	iterator := it.ShardIterator
	for iterator != nil {
		output, err := t.Streams.GetRecords(ctx, &dynamodbstreams.GetRecordsInput{ShardIterator: iterator})
		if err != nil {
			if ctx.Err() == nil {
				log.Printf("⚠️ Failed to read stream records for '%s': %v", c.Table, err)
			}
			return
		}
		for _, record := range output.Records {
			if ch, ok := t.toChange(c, record); ok {
				t.store.feed.Publish(ch)
			}
		}
		iterator = output.NextShardIterator

		select {
		case <-ctx.Done():
			return
		case <-time.After(streamPollInterval):
		}
	}
}

func (t *StreamTailer) toChange(c Collection, record streamtypes.Record) (Change, bool) {
	if record.Dynamodb == nil {
		return Change{}, false
	}
	image := record.Dynamodb.NewImage
	kind := ChangeUpdated
	switch record.EventName {
	case streamtypes.OperationTypeInsert:
		kind = ChangeCreated
	case streamtypes.OperationTypeRemove:
		kind = ChangeDeleted
		image = record.Dynamodb.OldImage
		if image == nil {
			image = record.Dynamodb.Keys
		}
	}

	item, err := attributevalue.FromDynamoDBStreamsMap(image)
	if err != nil {
		log.Printf("⚠️ Failed to convert stream image for '%s': %v", c.Table, err)
		return Change{}, false
	}
	id, err := keyOf(c, item)
	if err != nil {
		return Change{}, false
	}
	return Change{Collection: c, ID: id, Kind: kind, Item: item}, true
}
