// Package dynamodb implements the store port on DynamoDB using a
// single-table layout: partition key COLLECTION#<name>, sort key
// DOC#<id>, document fields marshalled into a single attribute map.
package dynamodb

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/application/ports"
	"github.com/Hrishnugg/SynDataGen-Rewrite-sub000/domain/document"
	apperrors "github.com/Hrishnugg/SynDataGen-Rewrite-sub000/pkg/errors"
)

// Client is the subset of the DynamoDB API the store uses.
type Client interface {
	DescribeTable(ctx context.Context, params *awsdynamodb.DescribeTableInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.DescribeTableOutput, error)
	GetItem(ctx context.Context, params *awsdynamodb.GetItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *awsdynamodb.PutItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *awsdynamodb.DeleteItemInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *awsdynamodb.QueryInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *awsdynamodb.TransactWriteItemsInput, optFns ...func(*awsdynamodb.Options)) (*awsdynamodb.TransactWriteItemsOutput, error)
}

// Store implements the store port on a single DynamoDB table.
type Store struct {
	client    Client
	tableName string
	logger    *zap.Logger
}

// NewStore creates a DynamoDB-backed document store.
func NewStore(client Client, tableName string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

var _ ports.Store = (*Store)(nil)

// docItem is the DynamoDB item structure for a document.
type docItem struct {
	PK         string         `dynamodbav:"PK"`
	SK         string         `dynamodbav:"SK"`
	Collection string         `dynamodbav:"Collection"`
	DocID      string         `dynamodbav:"DocID"`
	Fields     map[string]any `dynamodbav:"Fields"`
}

func collectionPK(collection string) string {
	return fmt.Sprintf("COLLECTION#%s", collection)
}

func documentSK(id string) string {
	return fmt.Sprintf("DOC#%s", id)
}

func documentKey(collection, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: collectionPK(collection)},
		"SK": &types.AttributeValueMemberS{Value: documentSK(id)},
	}
}

// Connect validates connectivity and credentials with a DescribeTable call.
// Idempotent; safe to call concurrently.
func (s *Store) Connect(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &awsdynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		return fmt.Errorf("failed to reach table %s: %w", s.tableName, err)
	}
	return nil
}

// Get retrieves a single document by ID.
func (s *Store) Get(ctx context.Context, collection, id string) (document.Document, bool, error) {
	result, err := s.client.GetItem(ctx, &awsdynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key:       documentKey(collection, id),
	})
	if err != nil {
		s.logger.Error("Failed to get document",
			zap.Error(err),
			zap.String("collection", collection),
			zap.String("id", id),
		)
		return document.Document{}, false, fmt.Errorf("failed to get document %s/%s: %w", collection, id, err)
	}
	if result.Item == nil {
		return document.Document{}, false, nil
	}

	doc, err := unmarshalDocument(result.Item)
	if err != nil {
		return document.Document{}, false, err
	}
	return doc, true, nil
}

// Query evaluates q against a collection. Where clauses become a DynamoDB
// filter expression evaluated server-side; ordering is applied client-side
// after retrieval because fields live inside a nested attribute map.
func (s *Store) Query(ctx context.Context, collection string, q document.Query) ([]document.Document, error) {
	input, err := buildQueryInput(s.tableName, collection, q)
	if err != nil {
		return nil, err
	}

	var docs []document.Document
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			s.logger.Error("Query failed",
				zap.Error(err),
				zap.String("collection", collection),
			)
			return nil, fmt.Errorf("query on %s failed: %w", collection, err)
		}

		for _, item := range result.Items {
			doc, err := unmarshalDocument(item)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}

		// Filtered queries can return short pages; keep paging until the
		// limit is satisfied or the partition is exhausted. An EndBefore
		// window is trimmed client-side, so the limit cannot cut the fetch
		// short either.
		if result.LastEvaluatedKey == nil {
			break
		}
		if q.Limit > 0 && len(q.Orders) == 0 && q.EndBefore == "" && len(docs) >= q.Limit {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	document.SortByOrders(docs, q.Orders)
	docs = document.ApplyCursorWindow(docs, cursorForWindow(q), q.EndBefore)
	if q.Limit > 0 && len(docs) > q.Limit {
		docs = docs[:q.Limit]
	}
	if len(q.Fields) > 0 {
		for i, doc := range docs {
			docs[i] = doc.Select(q.Fields)
		}
	}
	return docs, nil
}

// cursorForWindow returns the StartAfter cursor for client-side trimming.
// When the query is unordered the cursor was already consumed server-side
// through ExclusiveStartKey.
func cursorForWindow(q document.Query) string {
	if len(q.Orders) == 0 {
		return ""
	}
	return q.StartAfter
}

// buildQueryInput translates a declarative query into a DynamoDB QueryInput
// using the expression builder. The store, not this layer, decides filter
// evaluation order.
func buildQueryInput(tableName, collection string, q document.Query) (*awsdynamodb.QueryInput, error) {
	builder := expression.NewBuilder().
		WithKeyCondition(expression.Key("PK").Equal(expression.Value(collectionPK(collection))))

	if filter, ok, err := buildFilter(q.Wheres); err != nil {
		return nil, err
	} else if ok {
		builder = builder.WithFilter(filter)
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	input := &awsdynamodb.QueryInput{
		TableName:                 aws.String(tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}
	// A server-side limit with an EndBefore cursor could starve the page:
	// documents before the cursor may sit beyond the truncation point. The
	// window trim happens client-side, so fetch everything in that case.
	if q.Limit > 0 && len(q.Orders) == 0 && q.EndBefore == "" {
		input.Limit = aws.Int32(int32(q.Limit))
	}
	if q.StartAfter != "" && len(q.Orders) == 0 {
		input.ExclusiveStartKey = documentKey(collection, q.StartAfter)
	}
	return input, nil
}

func buildFilter(wheres []document.Where) (expression.ConditionBuilder, bool, error) {
	var filter expression.ConditionBuilder
	have := false

	for _, w := range wheres {
		name := expression.Name("Fields." + w.Field)

		var cond expression.ConditionBuilder
		switch w.Operator {
		case document.OpEqual:
			cond = name.Equal(expression.Value(w.Value))
		case document.OpNotEqual:
			cond = name.NotEqual(expression.Value(w.Value))
		case document.OpLessThan:
			cond = name.LessThan(expression.Value(w.Value))
		case document.OpLessThanOrEqual:
			cond = name.LessThanEqual(expression.Value(w.Value))
		case document.OpGreaterThan:
			cond = name.GreaterThan(expression.Value(w.Value))
		case document.OpGreaterThanEqual:
			cond = name.GreaterThanEqual(expression.Value(w.Value))
		case document.OpIn:
			candidates, ok := w.Value.([]any)
			if !ok || len(candidates) == 0 {
				return filter, false, fmt.Errorf("operator %q requires a non-empty list value", w.Operator)
			}
			operands := make([]expression.OperandBuilder, 0, len(candidates))
			for _, c := range candidates {
				operands = append(operands, expression.Value(c))
			}
			cond = name.In(operands[0], operands[1:]...)
		case document.OpArrayContains:
			cond = name.Contains(fmt.Sprintf("%v", w.Value))
		default:
			return filter, false, fmt.Errorf("unsupported operator %q on field %q", w.Operator, w.Field)
		}

		if have {
			filter = filter.And(cond)
		} else {
			filter = cond
			have = true
		}
	}
	return filter, have, nil
}

// Set writes a document under a caller-chosen ID. With merge=true the
// supplied fields are overlaid on the existing document, creating it when
// absent; otherwise the document is replaced in full.
func (s *Store) Set(ctx context.Context, collection, id string, fields document.Fields, merge bool) error {
	resolved := document.ResolveTimestamps(fields, time.Now())

	if merge {
		merged, _, err := s.mergedFields(ctx, collection, id, resolved)
		if err != nil {
			return err
		}
		resolved = merged
	}
	return s.put(ctx, collection, id, resolved)
}

func (s *Store) put(ctx context.Context, collection, id string, fields document.Fields) error {
	item, err := marshalDocument(collection, id, fields)
	if err != nil {
		return err
	}
	if _, err := s.client.PutItem(ctx, &awsdynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	}); err != nil {
		s.logger.Error("Failed to set document",
			zap.Error(err),
			zap.String("collection", collection),
			zap.String("id", id),
		)
		return fmt.Errorf("failed to set document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Add writes a document under a generated UUID and returns it.
func (s *Store) Add(ctx context.Context, collection string, fields document.Fields) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, fields, false); err != nil {
		return "", err
	}
	return id, nil
}

// Update applies a partial update to an existing document. Updating a
// missing document fails with a NOT_FOUND error.
func (s *Store) Update(ctx context.Context, collection, id string, fields document.Fields) error {
	resolved := document.ResolveTimestamps(fields, time.Now())
	merged, found, err := s.mergedFields(ctx, collection, id, resolved)
	if err != nil {
		return err
	}
	if !found {
		return apperrors.NewNotFoundError(collection, id)
	}
	return s.put(ctx, collection, id, merged)
}

// mergedFields reads the current document and overlays fields on top of its
// field map. DynamoDB rejects a nested SET whose parent attribute does not
// exist, so merges are read-merge-put; the window between read and put is
// last-writer-wins, the store's general write model.
func (s *Store) mergedFields(ctx context.Context, collection, id string, fields document.Fields) (document.Fields, bool, error) {
	existing, found, err := s.Get(ctx, collection, id)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return fields, false, nil
	}

	merged := existing.Clone().Fields
	for k, v := range fields {
		merged[k] = v
	}
	return merged, true, nil
}

// Delete removes a document. Deleting an absent document is not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.DeleteItem(ctx, &awsdynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       documentKey(collection, id),
	}); err != nil {
		s.logger.Error("Failed to delete document",
			zap.Error(err),
			zap.String("collection", collection),
			zap.String("id", id),
		)
		return fmt.Errorf("failed to delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

// RunTransaction buffers the writes issued by fn and commits them with a
// single TransactWriteItems call when fn returns nil. Reads inside the
// transaction observe committed state.
func (s *Store) RunTransaction(ctx context.Context, fn func(tx ports.Transaction) error) error {
	tx := &transaction{store: s, ctx: ctx}
	if err := fn(tx); err != nil {
		return err
	}
	if len(tx.items) == 0 {
		return nil
	}

	if _, err := s.client.TransactWriteItems(ctx, &awsdynamodb.TransactWriteItemsInput{
		TransactItems: tx.items,
	}); err != nil {
		s.logger.Error("Transaction commit failed", zap.Error(err), zap.Int("writes", len(tx.items)))
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

// ServerTimestamp returns the sentinel resolved to the store clock when a
// write commits.
func (s *Store) ServerTimestamp() any {
	return document.ServerTimestamp{}
}

// transaction accumulates TransactWriteItem entries until commit.
type transaction struct {
	store *Store
	ctx   context.Context
	items []types.TransactWriteItem
}

var _ ports.Transaction = (*transaction)(nil)

func (t *transaction) Get(collection, id string) (document.Document, bool, error) {
	return t.store.Get(t.ctx, collection, id)
}

func (t *transaction) Set(collection, id string, fields document.Fields, merge bool) error {
	resolved := document.ResolveTimestamps(fields, time.Now())
	if merge {
		return t.mergePut(collection, id, resolved)
	}
	return t.put(collection, id, resolved)
}

func (t *transaction) Update(collection, id string, fields document.Fields) error {
	return t.mergePut(collection, id, document.ResolveTimestamps(fields, time.Now()))
}

// mergePut overlays fields on the committed document state and buffers the
// result as a full put.
func (t *transaction) mergePut(collection, id string, fields document.Fields) error {
	merged, _, err := t.store.mergedFields(t.ctx, collection, id, fields)
	if err != nil {
		return err
	}
	return t.put(collection, id, merged)
}

func (t *transaction) put(collection, id string, fields document.Fields) error {
	item, err := marshalDocument(collection, id, fields)
	if err != nil {
		return err
	}
	t.items = append(t.items, types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(t.store.tableName),
			Item:      item,
		},
	})
	return nil
}

func (t *transaction) Delete(collection, id string) error {
	t.items = append(t.items, types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(t.store.tableName),
			Key:       documentKey(collection, id),
		},
	})
	return nil
}

func marshalDocument(collection, id string, fields document.Fields) (map[string]types.AttributeValue, error) {
	item := docItem{
		PK:         collectionPK(collection),
		SK:         documentSK(id),
		Collection: collection,
		DocID:      id,
		Fields:     fields,
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document %s/%s: %w", collection, id, err)
	}
	return av, nil
}

func unmarshalDocument(av map[string]types.AttributeValue) (document.Document, error) {
	var item docItem
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return document.Document{}, fmt.Errorf("failed to unmarshal document item: %w", err)
	}
	return document.New(item.DocID, item.Fields), nil
}
