package store

import (
	"testing"

	streamtypes "github.com/aws/aws-sdk-go-v2/service/dynamodbstreams/types"
)

func TestPendingShards(t *testing.T) {
	tailing := map[string]bool{}

	first := pendingShards(tailing, []string{"s1", "s2"}, true)
	if len(first) != 2 {
		t.Fatalf("startup shards = %v", first)
	}
	for _, s := range first {
		if s.from != streamtypes.ShardIteratorTypeLatest {
			t.Errorf("startup shard %s reads from %s, want LATEST", s.id, s.from)
		}
	}

	// s1 closed and split into s3
	later := pendingShards(tailing, []string{"s2", "s3"}, false)
	if len(later) != 1 || later[0].id != "s3" {
		t.Fatalf("later shards = %v, want only s3", later)
	}
	if later[0].from != streamtypes.ShardIteratorTypeTrimHorizon {
		t.Errorf("child shard reads from %s, want TRIM_HORIZON", later[0].from)
	}

	if again := pendingShards(tailing, []string{"s2", "s3"}, false); len(again) != 0 {
		t.Errorf("already tailed shards returned again: %v", again)
	}
}
