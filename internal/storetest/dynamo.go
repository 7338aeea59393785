// Package storetest provides an in-memory DynamoDB fake implementing the
// small surface the stores use: keyed put/get/delete with conditional
// expressions, simple SET updates and filtered scans. Test-only.
package storetest

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type fakeTable struct {
	keyAttrs []string
	items    map[string]map[string]types.AttributeValue
}

// DynamoFake is a minimal in-memory stand-in for DynamoDB.
type DynamoFake struct {
	mu     sync.Mutex
	tables map[string]*fakeTable

	// injectable failures
	PutErr    error
	GetErr    error
	ScanErr   error
	UpdateErr error
	DeleteErr error

	PutCalls int
}

func NewDynamoFake() *DynamoFake {
	return &DynamoFake{tables: map[string]*fakeTable{}}
}

// WithTable declares a table and its key attributes, in key order.
func (f *DynamoFake) WithTable(name string, keyAttrs ...string) *DynamoFake {
	f.tables[name] = &fakeTable{
		keyAttrs: keyAttrs,
		items:    map[string]map[string]types.AttributeValue{},
	}
	return f
}

// Items returns the raw items of a table.
func (f *DynamoFake) Items(table string) []map[string]types.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.tables[table]
	out := make([]map[string]types.AttributeValue, 0, len(t.items))
	for _, it := range t.items {
		out = append(out, it)
	}
	return out
}

func (f *DynamoFake) table(name *string) (*fakeTable, error) {
	if name == nil {
		return nil, errors.New("missing table name")
	}
	t, ok := f.tables[*name]
	if !ok {
		return nil, errors.New("unknown table: " + *name)
	}
	return t, nil
}

func (t *fakeTable) keyOf(item map[string]types.AttributeValue) (string, error) {
	parts := make([]string, 0, len(t.keyAttrs))
	for _, attr := range t.keyAttrs {
		v, ok := item[attr]
		if !ok {
			return "", errors.New("missing key attribute " + attr)
		}
		s, ok := v.(*types.AttributeValueMemberS)
		if !ok {
			return "", errors.New("non-string key attribute " + attr)
		}
		parts = append(parts, s.Value)
	}
	return strings.Join(parts, "|"), nil
}

func (f *DynamoFake) PutItem(_ context.Context, params *dyn.PutItemInput, _ ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PutCalls++
	if f.PutErr != nil {
		return nil, f.PutErr
	}

	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.keyOf(params.Item)
	if err != nil {
		return nil, err
	}

	existing := t.items[key]
	if params.ConditionExpression != nil {
		if !evalCondition(*params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, existing) {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	t.items[key] = copyItem(params.Item)
	return &dyn.PutItemOutput{}, nil
}

func (f *DynamoFake) GetItem(_ context.Context, params *dyn.GetItemInput, _ ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.GetErr != nil {
		return nil, f.GetErr
	}

	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := t.items[key]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: copyItem(item)}, nil
}

func (f *DynamoFake) UpdateItem(_ context.Context, params *dyn.UpdateItemInput, _ ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.UpdateErr != nil {
		return nil, f.UpdateErr
	}

	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item := t.items[key]

	if params.ConditionExpression != nil {
		if !evalCondition(*params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item) {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	if item == nil {
		item = map[string]types.AttributeValue{}
		for _, attr := range t.keyAttrs {
			item[attr] = params.Key[attr]
		}
		t.items[key] = item
	}
	if params.UpdateExpression != nil {
		applySet(*params.UpdateExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item)
	}
	return &dyn.UpdateItemOutput{Attributes: copyItem(item)}, nil
}

func (f *DynamoFake) DeleteItem(_ context.Context, params *dyn.DeleteItemInput, _ ...func(*dyn.Options)) (*dyn.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return nil, f.DeleteErr
	}

	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}
	key, err := t.keyOf(params.Key)
	if err != nil {
		return nil, err
	}
	item := t.items[key]

	if params.ConditionExpression != nil {
		if !evalCondition(*params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item) {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	delete(t.items, key)
	return &dyn.DeleteItemOutput{}, nil
}

func (f *DynamoFake) Scan(_ context.Context, params *dyn.ScanInput, _ ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ScanErr != nil {
		return nil, f.ScanErr
	}

	t, err := f.table(params.TableName)
	if err != nil {
		return nil, err
	}

	out := &dyn.ScanOutput{}
	for _, item := range t.items {
		if params.FilterExpression != nil {
			if !evalCondition(*params.FilterExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, item) {
				continue
			}
		}
		out.Items = append(out.Items, copyItem(item))
	}
	return out, nil
}

// evalCondition supports the expressions the stores actually issue:
// attribute_exists(a), attribute_not_exists(a), "lhs = :rhs" and a flat
// OR over those terms.
func evalCondition(expr string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) bool {
	expr = strings.TrimSpace(expr)

	if terms := strings.Split(expr, " OR "); len(terms) > 1 {
		for _, term := range terms {
			if evalCondition(term, names, values, item) {
				return true
			}
		}
		return false
	}

	if strings.HasPrefix(expr, "attribute_not_exists(") {
		return item == nil
	}
	if strings.HasPrefix(expr, "attribute_exists(") {
		return item != nil
	}

	parts := strings.SplitN(expr, "=", 2)
	if len(parts) != 2 {
		return false
	}
	lhs := resolveName(strings.TrimSpace(parts[0]), names)
	rhs := values[strings.TrimSpace(parts[1])]
	if item == nil {
		return false
	}
	return attrEqual(item[lhs], rhs)
}

// applySet handles "SET a = :x, #b = :y" update expressions.
func applySet(expr string, names map[string]string, values map[string]types.AttributeValue, item map[string]types.AttributeValue) {
	body := strings.TrimPrefix(strings.TrimSpace(expr), "SET ")
	for _, part := range strings.Split(body, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		target := resolveName(strings.TrimSpace(kv[0]), names)
		item[target] = values[strings.TrimSpace(kv[1])]
	}
}

func resolveName(name string, names map[string]string) string {
	if strings.HasPrefix(name, "#") {
		if resolved, ok := names[name]; ok {
			return resolved
		}
	}
	return name
}

func attrEqual(a, b types.AttributeValue) bool {
	as, aok := a.(*types.AttributeValueMemberS)
	bs, bok := b.(*types.AttributeValueMemberS)
	if aok && bok {
		return as.Value == bs.Value
	}
	return reflect.DeepEqual(a, b)
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}
