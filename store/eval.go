package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// The helpers below give MemoryStore and PostgresStore the same condition and update
// semantics DynamoDB applies server side.

// marshalValue converts a patch or condition value to an attribute value
func marshalValue(v interface{}) (types.AttributeValue, error) {
	switch t := v.(type) {
	case types.AttributeValue:
		return t, nil
	case StringSet:
		return &types.AttributeValueMemberSS{Value: dedupe(t)}, nil
	}
	return attributevalue.Marshal(v)
}

// keyOf extracts the partition key of an item
func keyOf(c Collection, item Item) (string, error) {
	if s, ok := item[c.Key].(*types.AttributeValueMemberS); ok && s.Value != "" {
		return s.Value, nil
	}
	return "", fmt.Errorf("item for table '%s' is missing key '%s'", c.Table, c.Key)
}

func keyItem(c Collection, id string) Item {
	return Item{c.Key: &types.AttributeValueMemberS{Value: id}}
}

func copyItem(item Item) Item {
	if item == nil {
		return nil
	}
	out := make(Item, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

// evaluate reports whether every condition holds for item (nil item = absent document)
func evaluate(item Item, conds Conditions) (bool, error) {
	for _, c := range conds {
		ok, err := evaluateOne(item, c)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func evaluateOne(item Item, c Condition) (bool, error) {
	attr, exists := item[c.Field]
	switch c.Op {
	case OpExists:
		return exists, nil
	case OpNotExists:
		return !exists, nil
	}

	want, err := marshalValue(c.Value)
	if err != nil {
		return false, err
	}

	switch c.Op {
	case OpEquals:
		return exists && avEqual(attr, want), nil
	case OpNotEquals:
		return !exists || !avEqual(attr, want), nil
	case OpContains:
		return exists && avContains(attr, want), nil
	case OpNotContains:
		return !exists || !avContains(attr, want), nil
	case OpLessOrEqual:
		if !exists {
			return false, nil
		}
		cmp, ok := avCompare(attr, want)
		return ok && cmp <= 0, nil
	}
	return false, fmt.Errorf("unsupported condition operator %d", c.Op)
}

func avEqual(a, b types.AttributeValue) bool {
	switch av := a.(type) {
	case *types.AttributeValueMemberS:
		bv, ok := b.(*types.AttributeValueMemberS)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberN:
		cmp, ok := avCompare(a, b)
		return ok && cmp == 0
	case *types.AttributeValueMemberBOOL:
		bv, ok := b.(*types.AttributeValueMemberBOOL)
		return ok && av.Value == bv.Value
	case *types.AttributeValueMemberNULL:
		_, ok := b.(*types.AttributeValueMemberNULL)
		return ok
	case *types.AttributeValueMemberSS, *types.AttributeValueMemberL:
		as, aok := stringsOf(a)
		bs, bok := stringsOf(b)
		if !aok || !bok || len(as) != len(bs) {
			return false
		}
		sort.Strings(as)
		sort.Strings(bs)
		for i := range as {
			if as[i] != bs[i] {
				return false
			}
		}
		return true
	}
	return false
}

func avContains(attr, want types.AttributeValue) bool {
	w, ok := want.(*types.AttributeValueMemberS)
	if !ok {
		return false
	}
	if s, ok := attr.(*types.AttributeValueMemberS); ok {
		return strings.Contains(s.Value, w.Value)
	}
	values, ok := stringsOf(attr)
	if !ok {
		return false
	}
	for _, v := range values {
		if v == w.Value {
			return true
		}
	}
	return false
}

// avCompare orders two numbers or two strings
func avCompare(a, b types.AttributeValue) (int, bool) {
	if an, ok := a.(*types.AttributeValueMemberN); ok {
		bn, ok := b.(*types.AttributeValueMemberN)
		if !ok {
			return 0, false
		}
		x, err1 := strconv.ParseFloat(an.Value, 64)
		y, err2 := strconv.ParseFloat(bn.Value, 64)
		if err1 != nil || err2 != nil {
			return 0, false
		}
		switch {
		case x < y:
			return -1, true
		case x > y:
			return 1, true
		}
		return 0, true
	}
	if as, ok := a.(*types.AttributeValueMemberS); ok {
		bs, ok := b.(*types.AttributeValueMemberS)
		if !ok {
			return 0, false
		}
		return strings.Compare(as.Value, bs.Value), true
	}
	return 0, false
}

// stringsOf reads a string set, or a list holding only strings
func stringsOf(attr types.AttributeValue) ([]string, bool) {
	switch v := attr.(type) {
	case *types.AttributeValueMemberSS:
		return append([]string(nil), v.Value...), true
	case *types.AttributeValueMemberL:
		out := make([]string, 0, len(v.Value))
		for _, el := range v.Value {
			s, ok := el.(*types.AttributeValueMemberS)
			if !ok {
				return nil, false
			}
			out = append(out, s.Value)
		}
		return out, true
	}
	return nil, false
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// stampVersion marks a newly created item as version 1
func stampVersion(item Item) {
	item[VersionField] = &types.AttributeValueMemberN{Value: "1"}
}

// applyPatch returns a copy of item with patch applied
func applyPatch(item Item, p Patch) (Item, error) {
	out := copyItem(item)
	if out == nil {
		out = Item{}
	}

	for field, v := range p.Set {
		if set, ok := v.(StringSet); ok && len(set) == 0 {
			delete(out, field)
			continue
		}
		av, err := marshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal '%s': %w", field, err)
		}
		out[field] = av
	}

	for _, field := range p.Remove {
		delete(out, field)
	}

	for field, delta := range p.Add {
		current := 0.0
		if n, ok := out[field].(*types.AttributeValueMemberN); ok {
			f, err := strconv.ParseFloat(n.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("field '%s' is not numeric: %w", field, err)
			}
			current = f
		} else if _, exists := out[field]; exists {
			return nil, fmt.Errorf("field '%s' is not numeric", field)
		}
		out[field] = &types.AttributeValueMemberN{Value: strconv.FormatFloat(current+delta, 'f', -1, 64)}
	}

	for field, values := range p.AddToSet {
		existing, _ := stringsOf(out[field])
		out[field] = &types.AttributeValueMemberSS{Value: dedupe(append(existing, values...))}
	}

	for field, values := range p.DeleteFromSet {
		existing, _ := stringsOf(out[field])
		drop := make(map[string]struct{}, len(values))
		for _, v := range values {
			drop[v] = struct{}{}
		}
		kept := existing[:0]
		for _, v := range existing {
			if _, ok := drop[v]; !ok {
				kept = append(kept, v)
			}
		}
		if len(kept) == 0 {
			delete(out, field)
		} else {
			out[field] = &types.AttributeValueMemberSS{Value: kept}
		}
	}

	for field, values := range p.Append {
		var list []types.AttributeValue
		if l, ok := out[field].(*types.AttributeValueMemberL); ok {
			list = append(list, l.Value...)
		}
		for _, v := range values {
			list = append(list, &types.AttributeValueMemberS{Value: v})
		}
		out[field] = &types.AttributeValueMemberL{Value: list}
	}

	return out, nil
}
