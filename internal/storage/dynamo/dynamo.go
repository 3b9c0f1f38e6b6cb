// Package dynamo implements ports.Store on a single DynamoDB table.
//
// Keys: pk "OWNER#<owner>" holds sk "TX#<id>" and "BUDGET#<category>";
// pk "USERS" holds sk "USER#<username>"; pk "COUNTER" holds the id
// sequences used for transactions and users.
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"spendsmart/internal/core"
	"spendsmart/internal/ports"
)

const (
	txPrefix     = "TX#"
	budgetPrefix = "BUDGET#"
	userPrefix   = "USER#"
	usersPK      = "USERS"
	counterPK    = "COUNTER"
)

type item struct {
	PK           string `json:"pk"`
	SK           string `json:"sk"`
	ID           int64  `json:"id,omitempty"`
	Owner        int64  `json:"owner,omitempty"`
	AmountCents  int64  `json:"amount_cents,omitempty"`
	Type         string `json:"type,omitempty"`
	Category     string `json:"category,omitempty"`
	Date         string `json:"date,omitempty"`
	LimitCents   int64  `json:"limit_cents,omitempty"`
	Username     string `json:"username,omitempty"`
	PasswordHash string `json:"password_hash,omitempty"`
	CreatedAt    int64  `json:"created_at,omitempty"`
}

type Store struct {
	client    *dynamodb.Client
	tableName string
}

var _ ports.Store = (*Store)(nil)

func NewStore(opts ...func(*Store)) *Store {
	s := new(Store)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func WithDynamoDBClient(client *dynamodb.Client) func(*Store) {
	return func(s *Store) {
		s.client = client
	}
}

func WithTableName(tableName string) func(*Store) {
	return func(s *Store) {
		s.tableName = tableName
	}
}

// NewClient loads the default AWS configuration for region. A non-empty
// endpoint points the client at DynamoDB Local or another compatible
// service.
func NewClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				PartitionID:   "aws",
				URL:           endpoint,
				SigningRegion: region,
			}, nil
		})
		opts = append(opts, config.WithEndpointResolverWithOptions(resolver))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return dynamodb.NewFromConfig(cfg), nil
}

// EnsureTable creates the ledger table when it does not exist yet.
func (s *Store) EnsureTable(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &s.tableName})
	if err == nil {
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return fmt.Errorf("describe table: %w", err)
	}
	_, err = s.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String("pk"), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String("sk"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String("pk"), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String("sk"), KeyType: types.KeyTypeRange},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

func ownerPK(owner int64) string {
	return "OWNER#" + strconv.FormatInt(owner, 10)
}

// txSK zero-pads the id so that sort keys order numerically.
func txSK(id int64) string {
	return fmt.Sprintf("%s%020d", txPrefix, id)
}

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: sk},
	}
}

func marshal(it item) (map[string]types.AttributeValue, error) {
	return attributevalue.MarshalMapWithOptions(it, func(opts *attributevalue.EncoderOptions) {
		opts.TagKey = "json"
	})
}

func unmarshalAll(items []map[string]types.AttributeValue) ([]item, error) {
	out := make([]item, 0, len(items))
	err := attributevalue.UnmarshalListOfMapsWithOptions(items, &out, func(opts *attributevalue.DecoderOptions) {
		opts.TagKey = "json"
	})
	return out, err
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// nextID atomically increments the named counter and returns its new value.
func (s *Store) nextID(ctx context.Context, name string) (int64, error) {
	update := expression.Add(expression.Name("seq"), expression.Value(1))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return 0, err
	}
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       key(counterPK, name),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueUpdatedNew,
	})
	if err != nil {
		return 0, fmt.Errorf("increment %s counter: %w", name, err)
	}
	var v struct {
		Seq int64 `dynamodbav:"seq"`
	}
	if err := attributevalue.UnmarshalMap(out.Attributes, &v); err != nil {
		return 0, err
	}
	return v.Seq, nil
}

func (s *Store) queryPrefix(ctx context.Context, pk, prefix string) ([]item, error) {
	keyExpr := expression.Key("pk").Equal(expression.Value(pk)).
		And(expression.Key("sk").BeginsWith(prefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyExpr).Build()
	if err != nil {
		return nil, err
	}

	input := &dynamodb.QueryInput{
		TableName:                 &s.tableName,
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}

	var out []item
	p := dynamodb.NewQueryPaginator(s.client, input)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items, err := unmarshalAll(page.Items)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
	}
	return out, nil
}

func (s *Store) ListTransactions(ctx context.Context, owner int64) ([]core.Transaction, error) {
	items, err := s.queryPrefix(ctx, ownerPK(owner), txPrefix)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(items))
	for _, it := range items {
		tx, err := toTransaction(it)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *Store) GetTransaction(ctx context.Context, owner, id int64) (core.Transaction, error) {
	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       key(ownerPK(owner), txSK(id)),
	})
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %d: %w", id, err)
	}
	if output.Item == nil {
		return core.Transaction{}, ports.ErrNotFound
	}
	items, err := unmarshalAll([]map[string]types.AttributeValue{output.Item})
	if err != nil {
		return core.Transaction{}, err
	}
	return toTransaction(items[0])
}

func (s *Store) AddTransaction(ctx context.Context, tx core.Transaction) (int64, error) {
	id, err := s.nextID(ctx, "TX")
	if err != nil {
		return 0, err
	}
	tx.ID = id
	av, err := marshal(fromTransaction(tx))
	if err != nil {
		return 0, err
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.tableName, Item: av}); err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}
	return id, nil
}

func (s *Store) UpdateTransaction(ctx context.Context, tx core.Transaction) error {
	av, err := marshal(fromTransaction(tx))
	if err != nil {
		return err
	}
	return s.conditionalWrite(ctx, av, expression.AttributeExists(expression.Name("sk")), ports.ErrNotFound)
}

func (s *Store) conditionalWrite(ctx context.Context, av map[string]types.AttributeValue, cond expression.ConditionBuilder, onFail error) error {
	expr, err := expression.NewBuilder().WithCondition(cond).Build()
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 &s.tableName,
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailed(err) {
		return onFail
	}
	return err
}

func (s *Store) DeleteTransaction(ctx context.Context, owner, id int64) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name("sk"))).
		Build()
	if err != nil {
		return err
	}
	_, err = s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 &s.tableName,
		Key:                       key(ownerPK(owner), txSK(id)),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if isConditionFailed(err) {
		return ports.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return nil
}

func (s *Store) ListBudgets(ctx context.Context, owner int64) (map[string]core.Money, error) {
	items, err := s.queryPrefix(ctx, ownerPK(owner), budgetPrefix)
	if err != nil {
		return nil, fmt.Errorf("list budgets: %w", err)
	}
	out := make(map[string]core.Money, len(items))
	for _, it := range items {
		out[it.Category] = core.Money{Cents: it.LimitCents}
	}
	return out, nil
}

func (s *Store) SetBudget(ctx context.Context, b core.Budget) error {
	av, err := marshal(item{
		PK:         ownerPK(b.OwnerID),
		SK:         budgetPrefix + b.Category,
		Owner:      b.OwnerID,
		Category:   b.Category,
		LimitCents: b.Limit.Cents,
	})
	if err != nil {
		return err
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{TableName: &s.tableName, Item: av}); err != nil {
		return fmt.Errorf("set budget %q: %w", b.Category, err)
	}
	return nil
}

func (s *Store) CreateUser(ctx context.Context, u core.User) (int64, error) {
	if _, err := s.GetUserByUsername(ctx, u.Username); err == nil {
		return 0, ports.ErrUsernameTaken
	} else if !errors.Is(err, ports.ErrNotFound) {
		return 0, err
	}
	id, err := s.nextID(ctx, "USER")
	if err != nil {
		return 0, err
	}
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	av, err := marshal(item{
		PK:           usersPK,
		SK:           userPrefix + u.Username,
		ID:           id,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		CreatedAt:    created.Unix(),
	})
	if err != nil {
		return 0, err
	}
	if err := s.conditionalWrite(ctx, av, expression.AttributeNotExists(expression.Name("sk")), ports.ErrUsernameTaken); err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	output, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       key(usersPK, userPrefix+username),
	})
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	if output.Item == nil {
		return core.User{}, ports.ErrNotFound
	}
	items, err := unmarshalAll([]map[string]types.AttributeValue{output.Item})
	if err != nil {
		return core.User{}, err
	}
	return toUser(items[0]), nil
}

func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	items, err := s.queryPrefix(ctx, usersPK, userPrefix)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	out := make([]core.User, 0, len(items))
	for _, it := range items {
		out = append(out, toUser(it))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error {
	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{TableName: &s.tableName})
	return err
}

// Reset deletes every item in the table, counters included.
func (s *Store) Reset(ctx context.Context) error {
	proj := expression.NamesList(expression.Name("pk"), expression.Name("sk"))
	expr, err := expression.NewBuilder().WithProjection(proj).Build()
	if err != nil {
		return err
	}
	p := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                &s.tableName,
		ProjectionExpression:     expr.Projection(),
		ExpressionAttributeNames: expr.Names(),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("scan table: %w", err)
		}
		for _, k := range page.Items {
			if _, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{TableName: &s.tableName, Key: k}); err != nil {
				return fmt.Errorf("delete item: %w", err)
			}
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }

func fromTransaction(tx core.Transaction) item {
	return item{
		PK:          ownerPK(tx.OwnerID),
		SK:          txSK(tx.ID),
		ID:          tx.ID,
		Owner:       tx.OwnerID,
		AmountCents: tx.Amount.Cents,
		Type:        string(tx.Type),
		Category:    tx.Category,
		Date:        tx.Date.String(),
	}
}

func toTransaction(it item) (core.Transaction, error) {
	d, err := core.ParseDate(it.Date)
	if err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{
		ID:       it.ID,
		OwnerID:  it.Owner,
		Amount:   core.Money{Cents: it.AmountCents},
		Type:     core.TransactionType(it.Type),
		Category: it.Category,
		Date:     d,
	}, nil
}

func toUser(it item) core.User {
	return core.User{
		ID:           it.ID,
		Username:     it.Username,
		PasswordHash: it.PasswordHash,
		CreatedAt:    time.Unix(it.CreatedAt, 0).UTC(),
	}
}
