package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// expr accumulates placeholders for one DynamoDB request
type expr struct {
	names  map[string]string
	values map[string]types.AttributeValue
	n      int
}

func newExpr() *expr {
	return &expr{names: map[string]string{}, values: map[string]types.AttributeValue{}}
}

func (e *expr) name(field string) string {
	placeholder := "#" + sanitize(field)
	e.names[placeholder] = field
	return placeholder
}

func (e *expr) value(av types.AttributeValue) string {
	e.n++
	placeholder := ":v" + strconv.Itoa(e.n)
	e.values[placeholder] = av
	return placeholder
}

// attrNames returns nil when unused, DynamoDB rejects empty maps
func (e *expr) attrNames() map[string]string {
	if len(e.names) == 0 {
		return nil
	}
	return e.names
}

func (e *expr) attrValues() map[string]types.AttributeValue {
	if len(e.values) == 0 {
		return nil
	}
	return e.values
}

func sanitize(field string) string {
	return strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, field)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// update renders a Patch as an UpdateExpression
func (e *expr) update(p Patch) (string, error) {
	var set, remove, add, del []string

	for _, field := range sortedKeys(p.Set) {
		v := p.Set[field]
		if s, ok := v.(StringSet); ok && len(s) == 0 {
			remove = append(remove, e.name(field))
			continue
		}
		av, err := marshalValue(v)
		if err != nil {
			return "", fmt.Errorf("failed to marshal '%s': %w", field, err)
		}
		set = append(set, fmt.Sprintf("%s = %s", e.name(field), e.value(av)))
	}

	for _, field := range sortedKeys(p.Append) {
		list := make([]types.AttributeValue, 0, len(p.Append[field]))
		for _, v := range p.Append[field] {
			list = append(list, &types.AttributeValueMemberS{Value: v})
		}
		name := e.name(field)
		empty := e.value(&types.AttributeValueMemberL{Value: []types.AttributeValue{}})
		set = append(set, fmt.Sprintf("%s = list_append(if_not_exists(%s, %s), %s)",
			name, name, empty, e.value(&types.AttributeValueMemberL{Value: list})))
	}

	for _, field := range p.Remove {
		remove = append(remove, e.name(field))
	}

	for _, field := range sortedKeys(p.Add) {
		n := &types.AttributeValueMemberN{Value: strconv.FormatFloat(p.Add[field], 'f', -1, 64)}
		add = append(add, fmt.Sprintf("%s %s", e.name(field), e.value(n)))
	}
	for _, field := range sortedKeys(p.AddToSet) {
		if len(p.AddToSet[field]) == 0 {
			continue
		}
		ss := &types.AttributeValueMemberSS{Value: dedupe(p.AddToSet[field])}
		add = append(add, fmt.Sprintf("%s %s", e.name(field), e.value(ss)))
	}

	for _, field := range sortedKeys(p.DeleteFromSet) {
		if len(p.DeleteFromSet[field]) == 0 {
			continue
		}
		ss := &types.AttributeValueMemberSS{Value: dedupe(p.DeleteFromSet[field])}
		del = append(del, fmt.Sprintf("%s %s", e.name(field), e.value(ss)))
	}

	var clauses []string
	if len(set) > 0 {
		clauses = append(clauses, "SET "+strings.Join(set, ", "))
	}
	if len(remove) > 0 {
		clauses = append(clauses, "REMOVE "+strings.Join(remove, ", "))
	}
	if len(add) > 0 {
		clauses = append(clauses, "ADD "+strings.Join(add, ", "))
	}
	if len(del) > 0 {
		clauses = append(clauses, "DELETE "+strings.Join(del, ", "))
	}
	if len(clauses) == 0 {
		return "", fmt.Errorf("update expression cannot be empty")
	}
	return strings.Join(clauses, " "), nil
}

// condition renders Conditions as a ConditionExpression; an empty result means no condition
func (e *expr) condition(conds Conditions) (string, error) {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		name := e.name(c.Field)
		switch c.Op {
		case OpExists:
			parts = append(parts, fmt.Sprintf("attribute_exists(%s)", name))
			continue
		case OpNotExists:
			parts = append(parts, fmt.Sprintf("attribute_not_exists(%s)", name))
			continue
		}

		av, err := marshalValue(c.Value)
		if err != nil {
			return "", fmt.Errorf("failed to marshal condition on '%s': %w", c.Field, err)
		}
		v := e.value(av)
		switch c.Op {
		case OpEquals:
			parts = append(parts, fmt.Sprintf("%s = %s", name, v))
		case OpNotEquals:
			parts = append(parts, fmt.Sprintf("(attribute_not_exists(%s) OR %s <> %s)", name, name, v))
		case OpContains:
			parts = append(parts, fmt.Sprintf("contains(%s, %s)", name, v))
		case OpNotContains:
			parts = append(parts, fmt.Sprintf("(attribute_not_exists(%s) OR NOT contains(%s, %s))", name, name, v))
		case OpLessOrEqual:
			parts = append(parts, fmt.Sprintf("%s <= %s", name, v))
		default:
			return "", fmt.Errorf("unsupported condition operator %d", c.Op)
		}
	}
	return strings.Join(parts, " AND "), nil
}
