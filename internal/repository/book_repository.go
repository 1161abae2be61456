package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/cloud-wave-best-zizon/bookstore-platform/internal/domain"
	pkgconfig "github.com/cloud-wave-best-zizon/bookstore-platform/pkg/config"
)

var ErrBookNotFound = errors.New("book not found")

// DynamoAPI is the subset of the DynamoDB client used by BookRepository.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, opts ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type BookRepository struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

func NewDynamoDBClient(ctx context.Context, cfg *pkgconfig.Catalog) (*dynamodb.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.AWSRegion)}
	if cfg.LocalMode {
		// DynamoDB Local은 자격 증명을 검증하지 않음
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	}), nil
}

func NewBookRepository(client DynamoAPI, tableName string) *BookRepository {
	return &BookRepository{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

func (r *BookRepository) Create(ctx context.Context, book *domain.Book) error {
	book.TitleSearch = strings.ToLower(book.Title)
	book.AuthorSearch = strings.ToLower(book.Author)

	av, err := attributevalue.MarshalMap(book)
	if err != nil {
		return fmt.Errorf("failed to marshal book: %w", err)
	}

	cond, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("book_id"))).
		Build()
	if err != nil {
		return err
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       cond.Condition(),
		ExpressionAttributeNames:  cond.Names(),
		ExpressionAttributeValues: cond.Values(),
	})
	if err != nil {
		return fmt.Errorf("failed to put item: %w", err)
	}

	return nil
}

// GetByID returns active books only.
func (r *BookRepository) GetByID(ctx context.Context, bookID string) (*domain.Book, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       bookKey(bookID),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if result.Item == nil {
		return nil, ErrBookNotFound
	}

	var book domain.Book
	if err := attributevalue.UnmarshalMap(result.Item, &book); err != nil {
		return nil, fmt.Errorf("failed to unmarshal book: %w", err)
	}
	if book.DeletedAt != nil {
		return nil, ErrBookNotFound
	}

	return &book, nil
}

// List scans active books matching search on title or author, newest first.
func (r *BookRepository) List(ctx context.Context, q domain.BookQuery) ([]domain.Book, int, error) {
	filter := expression.AttributeNotExists(expression.Name("deleted_at"))
	if s := strings.ToLower(strings.TrimSpace(q.Search)); s != "" {
		filter = filter.And(expression.Or(
			expression.Contains(expression.Name("title_search"), s),
			expression.Contains(expression.Name("author_search"), s),
		))
	}

	expr, err := expression.NewBuilder().WithFilter(filter).Build()
	if err != nil {
		return nil, 0, err
	}

	paginator := dynamodb.NewScanPaginator(r.client, &dynamodb.ScanInput{
		TableName:                 aws.String(r.tableName),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	var books []domain.Book
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan books: %w", err)
		}
		var batch []domain.Book
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal books: %w", err)
		}
		books = append(books, batch...)
	}

	sort.SliceStable(books, func(i, j int) bool {
		return books[i].CreatedAt.After(books[j].CreatedAt)
	})

	total := len(books)
	// 페이지 수로 먼저 비교해서 곱셈 오버플로 방지
	if q.Page < 1 || q.Limit < 1 || q.Page-1 >= (total+q.Limit-1)/q.Limit {
		return []domain.Book{}, total, nil
	}
	start := (q.Page - 1) * q.Limit
	end := start + q.Limit
	if end > total {
		end = total
	}
	return books[start:end], total, nil
}

func (r *BookRepository) Update(ctx context.Context, bookID string, req domain.UpdateBookRequest, actor string) (*domain.Book, error) {
	update := expression.Set(expression.Name("modified_at"), expression.Value(r.now().UTC())).
		Set(expression.Name("modified_by"), expression.Value(actor))
	if req.Title != nil {
		update = update.Set(expression.Name("title"), expression.Value(*req.Title)).
			Set(expression.Name("title_search"), expression.Value(strings.ToLower(*req.Title)))
	}
	if req.Author != nil {
		update = update.Set(expression.Name("author"), expression.Value(*req.Author)).
			Set(expression.Name("author_search"), expression.Value(strings.ToLower(*req.Author)))
	}

	result, err := r.conditionalUpdate(ctx, bookID, update)
	if err != nil {
		return nil, err
	}

	var book domain.Book
	if err := attributevalue.UnmarshalMap(result.Attributes, &book); err != nil {
		return nil, fmt.Errorf("failed to unmarshal book: %w", err)
	}
	return &book, nil
}

// SoftDelete sets deleted_at and deleted_by in one write.
func (r *BookRepository) SoftDelete(ctx context.Context, bookID, actor string) error {
	update := expression.Set(expression.Name("deleted_at"), expression.Value(r.now().UTC())).
		Set(expression.Name("deleted_by"), expression.Value(actor))

	_, err := r.conditionalUpdate(ctx, bookID, update)
	return err
}

func (r *BookRepository) conditionalUpdate(ctx context.Context, bookID string, update expression.UpdateBuilder) (*dynamodb.UpdateItemOutput, error) {
	// 존재하고 삭제되지 않은 경우에만 업데이트
	condition := expression.AttributeExists(expression.Name("book_id")).
		And(expression.AttributeNotExists(expression.Name("deleted_at")))

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(condition).
		Build()
	if err != nil {
		return nil, err
	}

	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       bookKey(bookID),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return result, nil
}

func bookKey(bookID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"book_id": &types.AttributeValueMemberS{Value: bookID},
	}
}
