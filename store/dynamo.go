package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoStore keeps each collection in its own DynamoDB table
type DynamoStore struct {
	Client *dynamodb.Client
	prefix string
	feed   *Broker
	// publishLocal is false when a StreamTailer feeds the broker instead
	publishLocal bool
}

// LoadAWSConfig loads the shared AWS config for region
func LoadAWSConfig(ctx context.Context, region string) (aws.Config, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return cfg, nil
}

// InitializeDynamoDBClient initializes the DynamoDB client, pointing it at endpoint when set
func InitializeDynamoDBClient(cfg aws.Config, endpoint string) *dynamodb.Client {
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
}

// NewDynamoStore wraps client; table names are prefixed with tablePrefix
func NewDynamoStore(client *dynamodb.Client, tablePrefix string, publishLocal bool) *DynamoStore {
	return &DynamoStore{
		Client:       client,
		prefix:       tablePrefix,
		feed:         NewBroker(),
		publishLocal: publishLocal,
	}
}

func (ds *DynamoStore) tableName(c Collection) string {
	return ds.prefix + c.Table
}

func (ds *DynamoStore) publish(ch Change) {
	if ds.publishLocal {
		ds.feed.Publish(ch)
	}
}

// EnsureTables creates any missing table, used against DynamoDB Local
func (ds *DynamoStore) EnsureTables(ctx context.Context, withStreams bool) error {
	for _, c := range Collections {
		name := ds.tableName(c)
		_, err := ds.Client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: aws.String(name)})
		if err == nil {
			continue
		}
		var notFound *types.ResourceNotFoundException
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to describe table '%s': %w", name, err)
		}

		input := &dynamodb.CreateTableInput{
			TableName: aws.String(name),
			AttributeDefinitions: []types.AttributeDefinition{
				{AttributeName: aws.String(c.Key), AttributeType: types.ScalarAttributeTypeS},
			},
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(c.Key), KeyType: types.KeyTypeHash},
			},
			BillingMode: types.BillingModePayPerRequest,
		}
		if withStreams {
			input.StreamSpecification = &types.StreamSpecification{
				StreamEnabled:  aws.Bool(true),
				StreamViewType: types.StreamViewTypeNewAndOldImages,
			}
		}
		if _, err := ds.Client.CreateTable(ctx, input); err != nil {
			return fmt.Errorf("failed to create table '%s': %w", name, err)
		}
		log.Printf("✅ Created table '%s'", name)
	}
	return nil
}

// Get retrieves an item with a consistent read
func (ds *DynamoStore) Get(ctx context.Context, c Collection, id string, out interface{}) error {
	output, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(ds.tableName(c)),
		Key:            keyItem(c, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to get item from table '%s': %w", ds.tableName(c), err)
	}
	if output.Item == nil {
		return ErrNotFound
	}
	return attributevalue.UnmarshalMap(output.Item, out)
}

// Create puts doc guarded by attribute_not_exists on the key
func (ds *DynamoStore) Create(ctx context.Context, c Collection, doc interface{}) error {
	item, err := attributevalue.MarshalMap(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal item: %w", err)
	}
	id, err := keyOf(c, item)
	if err != nil {
		return err
	}

	stampVersion(item)
	_, err = ds.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(ds.tableName(c)),
		Item:                     item,
		ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": c.Key},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return ErrAlreadyExists
		}
		log.Printf("❌ Failed to put item in table '%s': %v", ds.tableName(c), err)
		return fmt.Errorf("failed to put item in table '%s': %w", ds.tableName(c), err)
	}

	ds.publish(Change{Collection: c, ID: id, Kind: ChangeCreated, Item: item})
	return nil
}

// guard prepends attribute_exists on the key so an update never creates a document
func guard(c Collection, expect Conditions) Conditions {
	return append(Conditions{Exists(c.Key)}, expect...)
}

// ConditionalUpdate runs UpdateItem with the patch and expectations rendered as expressions
func (ds *DynamoStore) ConditionalUpdate(ctx context.Context, c Collection, id string, patch Patch, expect Conditions, out interface{}) error {
	attrs, err := ds.update(ctx, c, id, patch, expect, types.ReturnValueAllNew)
	if err != nil {
		return err
	}

	ds.publish(Change{Collection: c, ID: id, Kind: ChangeUpdated, Item: attrs})
	if out != nil {
		return attributevalue.UnmarshalMap(attrs, out)
	}
	return nil
}

func (ds *DynamoStore) update(ctx context.Context, c Collection, id string, patch Patch, expect Conditions, rv types.ReturnValue) (Item, error) {
	e := newExpr()
	updateExpression, err := e.update(versioned(patch))
	if err != nil {
		return nil, err
	}
	conditionExpression, err := e.condition(guard(c, expect))
	if err != nil {
		return nil, err
	}

	output, err := ds.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                           aws.String(ds.tableName(c)),
		Key:                                 keyItem(c, id),
		UpdateExpression:                    aws.String(updateExpression),
		ConditionExpression:                 aws.String(conditionExpression),
		ExpressionAttributeNames:            e.attrNames(),
		ExpressionAttributeValues:           e.attrValues(),
		ReturnValues:                        rv,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		return nil, ds.mapConditionError(c, err)
	}
	return output.Attributes, nil
}

// mapConditionError turns a failed guard into ErrNotFound or ErrConditionFailed
func (ds *DynamoStore) mapConditionError(c Collection, err error) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		if len(ccf.Item) == 0 {
			return ErrNotFound
		}
		return ErrConditionFailed
	}
	log.Printf("❌ Write to table '%s' failed: %v", ds.tableName(c), err)
	return fmt.Errorf("failed to update item in table '%s': %w", ds.tableName(c), err)
}

// AtomicIncrement runs ADD on a numeric attribute
func (ds *DynamoStore) AtomicIncrement(ctx context.Context, c Collection, id, field string, delta float64) (float64, error) {
	attrs, err := ds.update(ctx, c, id, Patch{Add: map[string]float64{field: delta}}, nil, types.ReturnValueAllNew)
	if err != nil {
		return 0, err
	}
	ds.publish(Change{Collection: c, ID: id, Kind: ChangeUpdated, Item: attrs})

	n, ok := attrs[field].(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("field '%s' is not numeric", field)
	}
	return strconv.ParseFloat(n.Value, 64)
}

// Delete removes an item when every expectation holds
func (ds *DynamoStore) Delete(ctx context.Context, c Collection, id string, expect Conditions) error {
	e := newExpr()
	conditionExpression, err := e.condition(guard(c, expect))
	if err != nil {
		return err
	}

	output, err := ds.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                           aws.String(ds.tableName(c)),
		Key:                                 keyItem(c, id),
		ConditionExpression:                 aws.String(conditionExpression),
		ExpressionAttributeNames:            e.attrNames(),
		ExpressionAttributeValues:           e.attrValues(),
		ReturnValues:                        types.ReturnValueAllOld,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		return ds.mapConditionError(c, err)
	}

	ds.publish(Change{Collection: c, ID: id, Kind: ChangeDeleted, Item: output.Attributes})
	return nil
}

// Query scans the table with a FilterExpression, following every page
func (ds *DynamoStore) Query(ctx context.Context, c Collection, filter Conditions, out interface{}) error {
	input := &dynamodb.ScanInput{
		TableName:      aws.String(ds.tableName(c)),
		ConsistentRead: aws.Bool(true),
	}
	if len(filter) > 0 {
		e := newExpr()
		filterExpression, err := e.condition(filter)
		if err != nil {
			return err
		}
		input.FilterExpression = aws.String(filterExpression)
		input.ExpressionAttributeNames = e.attrNames()
		input.ExpressionAttributeValues = e.attrValues()
	}

	items := []Item{}
	paginator := dynamodb.NewScanPaginator(ds.Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("failed to scan table '%s': %w", ds.tableName(c), err)
		}
		items = append(items, page.Items...)
	}

	if err := attributevalue.UnmarshalListOfMaps(items, out); err != nil {
		return fmt.Errorf("failed to unmarshal scan result: %w", err)
	}
	return nil
}

// Transact runs TransactWriteItems; cancellation reasons map to TxCanceledError
func (ds *DynamoStore) Transact(ctx context.Context, ops []TxOp) error {
	items := make([]types.TransactWriteItem, 0, len(ops))
	ids := make([]string, len(ops))

	for i, op := range ops {
		e := newExpr()
		table := aws.String(ds.tableName(op.Collection))
		switch op.Kind {
		case TxPut:
			item, err := attributevalue.MarshalMap(op.Doc)
			if err != nil {
				return fmt.Errorf("failed to marshal item: %w", err)
			}
			if ids[i], err = keyOf(op.Collection, item); err != nil {
				return err
			}
			stampVersion(item)
			items = append(items, types.TransactWriteItem{Put: &types.Put{
				TableName:                table,
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(" + e.name(op.Collection.Key) + ")"),
				ExpressionAttributeNames: e.attrNames(),
			}})
		case TxUpdate:
			updateExpression, err := e.update(versioned(op.Patch))
			if err != nil {
				return err
			}
			conditionExpression, err := e.condition(guard(op.Collection, op.Expect))
			if err != nil {
				return err
			}
			ids[i] = op.ID
			items = append(items, types.TransactWriteItem{Update: &types.Update{
				TableName:                 table,
				Key:                       keyItem(op.Collection, op.ID),
				UpdateExpression:          aws.String(updateExpression),
				ConditionExpression:       aws.String(conditionExpression),
				ExpressionAttributeNames:  e.attrNames(),
				ExpressionAttributeValues: e.attrValues(),
			}})
		case TxDelete:
			conditionExpression, err := e.condition(guard(op.Collection, op.Expect))
			if err != nil {
				return err
			}
			ids[i] = op.ID
			items = append(items, types.TransactWriteItem{Delete: &types.Delete{
				TableName:                 table,
				Key:                       keyItem(op.Collection, op.ID),
				ConditionExpression:       aws.String(conditionExpression),
				ExpressionAttributeNames:  e.attrNames(),
				ExpressionAttributeValues: e.attrValues(),
			}})
		default:
			return fmt.Errorf("unknown transaction operation %d", op.Kind)
		}
	}

	_, err := ds.Client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			failed := make([]bool, len(ops))
			for i, reason := range canceled.CancellationReasons {
				// TransactionConflict and throttling leave every flag unset so callers simply retry
				if i < len(failed) && aws.ToString(reason.Code) == "ConditionalCheckFailed" {
					failed[i] = true
				}
			}
			log.Printf("⚠️ Transaction canceled: %v", canceled.CancellationReasons)
			return &TxCanceledError{Failed: failed}
		}
		return fmt.Errorf("failed to run transaction: %w", err)
	}

	if ds.publishLocal {
		for i, op := range ops {
			ds.publishAfterTx(ctx, op, ids[i])
		}
	}
	return nil
}

// publishAfterTx reloads a written document, TransactWriteItems returns no images
func (ds *DynamoStore) publishAfterTx(ctx context.Context, op TxOp, id string) {
	if op.Kind == TxDelete {
		ds.feed.Publish(Change{Collection: op.Collection, ID: id, Kind: ChangeDeleted, Item: keyItem(op.Collection, id)})
		return
	}
	output, err := ds.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(ds.tableName(op.Collection)),
		Key:            keyItem(op.Collection, id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil || output.Item == nil {
		log.Printf("⚠️ Could not reload %s/%s after transaction: %v", op.Collection.Table, id, err)
		return
	}
	kind := ChangeUpdated
	if op.Kind == TxPut {
		kind = ChangeCreated
	}
	ds.feed.Publish(Change{Collection: op.Collection, ID: id, Kind: kind, Item: output.Item})
}

// Subscribe registers a change listener on the store's broker
func (ds *DynamoStore) Subscribe(c Collection, filter Conditions, onChange func(Change)) func() {
	return ds.feed.Subscribe(c, filter, onChange)
}
