package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jianxion/Dining-Concierge-Chatbot/internal/domain"
)

const (
	attrBusinessID = "business_id"

	batchWriteMax = 25  // DynamoDB BatchWriteItem limit
	batchGetMax   = 100 // DynamoDB BatchGetItem limit
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	BatchGetItem(ctx context.Context, in *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, in *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// Client wraps the DynamoDB restaurants table.
type Client struct {
	api       dynamodbAPI
	tableName string
}

// New creates a new repository Client.
func New(api dynamodbAPI, tableName string) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &Client{api: api, tableName: tableName}, nil
}

// BatchGetRestaurants fetches full records for the given business IDs and
// returns them re-sorted to the input id order, since BatchGetItem gives no
// ordering guarantee and selection order drives presentation downstream.
func (c *Client) BatchGetRestaurants(ctx context.Context, ids []string) ([]domain.Restaurant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > batchGetMax {
		return nil, fmt.Errorf("repository: BatchGetRestaurants: at most %d ids per call", batchGetMax)
	}

	keys := make([]map[string]types.AttributeValue, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, map[string]types.AttributeValue{
			attrBusinessID: &types.AttributeValueMemberS{Value: id},
		})
	}

	out, err := c.api.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			c.tableName: {
				Keys:                     keys,
				ProjectionExpression:     aws.String("business_id, #n, address, coordinates, review_count, rating, zip_code"),
				ExpressionAttributeNames: map[string]string{"#n": "name"},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("repository: BatchGetRestaurants: %w", err)
	}

	items := out.Responses[c.tableName]
	restaurants := make([]domain.Restaurant, 0, len(items))
	for _, item := range items {
		r, err := itemToRestaurant(item)
		if err != nil {
			return nil, fmt.Errorf("repository: BatchGetRestaurants decode item: %w", err)
		}
		restaurants = append(restaurants, r)
	}

	order := make(map[string]int, len(ids))
	for i, id := range ids {
		order[id] = i
	}
	sort.SliceStable(restaurants, func(i, j int) bool {
		return order[restaurants[i].BusinessID] < order[restaurants[j].BusinessID]
	})
	return restaurants, nil
}

// BatchWriteRestaurants writes records in chunks of 25. Unprocessed items
// reported by DynamoDB are retried once per chunk before failing.
func (c *Client) BatchWriteRestaurants(ctx context.Context, restaurants []domain.Restaurant) error {
	for start := 0; start < len(restaurants); start += batchWriteMax {
		end := start + batchWriteMax
		if end > len(restaurants) {
			end = len(restaurants)
		}

		writes := make([]types.WriteRequest, 0, end-start)
		for _, r := range restaurants[start:end] {
			if strings.TrimSpace(r.BusinessID) == "" {
				return errors.New("repository: BatchWriteRestaurants: business ID is required")
			}
			writes = append(writes, types.WriteRequest{
				PutRequest: &types.PutRequest{Item: restaurantItem(r)},
			})
		}

		pending := map[string][]types.WriteRequest{c.tableName: writes}
		for attempt := 0; len(pending[c.tableName]) > 0; attempt++ {
			if attempt > 1 {
				return errors.New("repository: BatchWriteRestaurants: unprocessed items after retry")
			}
			out, err := c.api.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: pending})
			if err != nil {
				return fmt.Errorf("repository: BatchWriteRestaurants: %w", err)
			}
			pending = out.UnprocessedItems
		}
	}
	return nil
}

// ScanRestaurantRefs pages through the whole table and returns thin
// references for the search indexer.
func (c *Client) ScanRestaurantRefs(ctx context.Context) ([]domain.RestaurantRef, error) {
	var refs []domain.RestaurantRef
	var startKey map[string]types.AttributeValue
	for {
		out, err := c.api.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(c.tableName),
			ProjectionExpression: aws.String("business_id, cuisine"),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("repository: ScanRestaurantRefs: %w", err)
		}
		for _, item := range out.Items {
			id, err := strAttr(item, attrBusinessID)
			if err != nil {
				return nil, fmt.Errorf("repository: ScanRestaurantRefs decode item: %w", err)
			}
			cuisine, _ := strAttr(item, "cuisine") // allow empty
			refs = append(refs, domain.RestaurantRef{RestaurantID: id, Cuisine: cuisine})
		}
		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}
	return refs, nil
}

// itemToRestaurant converts a DynamoDB attribute map to a Restaurant. Only
// the business id is required; records with sparse attributes are tolerated.
func itemToRestaurant(item map[string]types.AttributeValue) (domain.Restaurant, error) {
	id, err := strAttr(item, attrBusinessID)
	if err != nil {
		return domain.Restaurant{}, err
	}

	r := domain.Restaurant{BusinessID: id}
	r.Name, _ = strAttr(item, "name")       // allow empty
	r.Address, _ = strAttr(item, "address") // allow empty
	r.ZipCode, _ = strAttr(item, "zip_code")
	if n, err := intAttr(item, "review_count"); err == nil {
		r.ReviewCount = n
	}
	if f, err := floatAttr(item, "rating"); err == nil {
		r.Rating = f
	}
	if coords, ok := item["coordinates"].(*types.AttributeValueMemberM); ok {
		lat, latErr := floatAttr(coords.Value, "lat")
		lon, lonErr := floatAttr(coords.Value, "lon")
		if latErr == nil && lonErr == nil {
			r.Coordinates = &domain.Coordinates{Lat: lat, Lon: lon}
		}
	}
	return r, nil
}

func restaurantItem(r domain.Restaurant) map[string]types.AttributeValue {
	item := map[string]types.AttributeValue{
		attrBusinessID:        &types.AttributeValueMemberS{Value: r.BusinessID},
		"name":                &types.AttributeValueMemberS{Value: r.Name},
		"address":             &types.AttributeValueMemberS{Value: r.Address},
		"review_count":        &types.AttributeValueMemberN{Value: strconv.Itoa(r.ReviewCount)},
		"rating":              &types.AttributeValueMemberN{Value: strconv.FormatFloat(r.Rating, 'f', -1, 64)},
		"zip_code":            &types.AttributeValueMemberS{Value: r.ZipCode},
		"cuisine":             &types.AttributeValueMemberS{Value: r.Cuisine},
		"insertedAtTimestamp": &types.AttributeValueMemberS{Value: r.InsertedAt},
	}
	if r.Coordinates != nil {
		item["coordinates"] = &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"lat": &types.AttributeValueMemberN{Value: strconv.FormatFloat(r.Coordinates.Lat, 'f', -1, 64)},
			"lon": &types.AttributeValueMemberN{Value: strconv.FormatFloat(r.Coordinates.Lon, 'f', -1, 64)},
		}}
	}
	return item
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

func floatAttr(item map[string]types.AttributeValue, key string) (float64, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.ParseFloat(n.Value, 64)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}
