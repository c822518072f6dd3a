package vectorstore

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// KeyPolicy assigns store keys to records inserted without explicit keys.
type KeyPolicy interface {
	// AssignKeys returns n new keys under schema.Prefix.
	AssignKeys(ctx context.Context, b Backend, schema IndexSchema, n int) ([]string, error)
}

// KeyPolicyFunc adapts a function to KeyPolicy.
type KeyPolicyFunc func(ctx context.Context, b Backend, schema IndexSchema, n int) ([]string, error)

// AssignKeys implements KeyPolicy.
func (f KeyPolicyFunc) AssignKeys(ctx context.Context, b Backend, schema IndexSchema, n int) ([]string, error) {
	return f(ctx, b, schema, n)
}

// UUIDKeys assigns prefix+random UUID keys. Unique across concurrent writers.
func UUIDKeys() KeyPolicy {
	return KeyPolicyFunc(func(_ context.Context, _ Backend, schema IndexSchema, n int) ([]string, error) {
		keys := make([]string, n)
		for i := range keys {
			keys[i] = schema.Prefix + uuid.NewString()
		}
		return keys, nil
	})
}

// SequenceKeys assigns prefix+N keys from a counter the backend increments
// atomically. Unique across concurrent writers.
func SequenceKeys() KeyPolicy {
	return KeyPolicyFunc(func(ctx context.Context, b Backend, schema IndexSchema, n int) ([]string, error) {
		first, err := b.Reserve(ctx, schema.Name, n)
		if err != nil {
			return nil, fmt.Errorf("reserve %d keys: %w", n, err)
		}
		return sequentialKeys(schema.Prefix, first, n), nil
	})
}

// CountKeys assigns prefix+N keys where N starts at the number of records
// currently in the index. Two concurrent writers can read the same count
// and overwrite each other, so it is only safe for a single writer.
func CountKeys() KeyPolicy {
	return KeyPolicyFunc(func(ctx context.Context, b Backend, schema IndexSchema, n int) ([]string, error) {
		info, err := b.IndexInfo(ctx, schema.Name)
		if err != nil {
			return nil, fmt.Errorf("count records: %w", err)
		}
		return sequentialKeys(schema.Prefix, info.NumDocs, n), nil
	})
}

func sequentialKeys(prefix string, first int64, n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = prefix + strconv.FormatInt(first+int64(i), 10)
	}
	return keys
}
